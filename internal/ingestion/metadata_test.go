package ingestion

import "testing"

func TestInferTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "internet landing page", url: "https://www.ziggo.nl/internet", want: TopicInternet},
		{name: "fiber subpage", url: "https://www.ziggo.nl/glasvezel/aanbod", want: TopicInternet},
		{name: "tv", url: "https://www.ziggo.nl/televisie/zenders", want: TopicTV},
		{name: "mobile compound segment", url: "https://www.example.com/sim-only", want: TopicMobile},
		{name: "billing", url: "https://www.example.com/klantenservice/factuur", want: TopicSupport},
		{name: "payment first", url: "https://www.example.com/payment/help", want: TopicBilling},
		{name: "support", url: "https://www.example.com/help/contact", want: TopicSupport},
		{name: "host is not a topic", url: "https://internet.example.com/about", want: TopicGeneral},
		{name: "sample scheme", url: "sample://billing-faq", want: TopicBilling},
		{name: "root", url: "https://www.example.com/", want: TopicGeneral},
		{name: "unparseable", url: "://bad", want: TopicGeneral},
		{name: "case insensitive", url: "https://www.example.com/Internet/Speeds", want: TopicInternet},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := InferTopic(tc.url); got != tc.want {
				t.Errorf("InferTopic(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}
