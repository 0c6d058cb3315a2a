package ingestion

import "github.com/54b3r/supportai-go/internal/rag"

// SampleSource is the source identifier of the built-in corpus.
const SampleSource = "sample://support-overview"

// sampleText is indexed when no source page can be fetched, so a fresh
// install can still answer the common questions.
const sampleText = `Internet Services - Complete Overview

Our Services:
1. Fiber Optic Internet: Ultra-fast internet speeds up to 1 Gbps with our fiber network.
   - Download speeds: Up to 1000 Mbps
   - Upload speeds: Up to 100 Mbps
   - Latency: below 10ms
   - Availability: Urban and suburban areas

2. Cable Internet: Reliable and fast internet through our cable infrastructure.
   - Download speeds: Up to 500 Mbps
   - Upload speeds: Up to 50 Mbps
   - Data: Unlimited
   - Available: Nationwide

3. Mobile 5G: Latest generation mobile connectivity.
   - Coverage: Major cities and highways
   - Speed: Up to 1 Gbps
   - Data: Various plans from 10GB to unlimited
   - Devices: Compatible with all 5G phones

4. Residential Internet Packages and speeds we offer:
   - Starter: 100 Mbps for 35 euro per month
   - Pro: 500 Mbps for 55 euro per month
   - Elite: 1000 Mbps for 75 euro per month

Customer Support:
   - Phone: available 24/7
   - Email: support@example.com
   - Chat: Available on the website
   - Response time: within 2 hours

Installation & Setup:
   - Professional installation available
   - Cost: 50 euro one-time (waived for annual plans)
   - Router provided with service
   - Setup time: 2-4 hours
   - Technician includes network setup

Billing & Payments:
   - Monthly billing available
   - Annual discounts: 10% off
   - Multiple payment methods accepted
   - Cancellation: 30 days notice`

// SampleDocument returns the built-in sample corpus as one document.
func SampleDocument() rag.Document {
	return NewDocument(SampleSource, sampleText, map[string]string{"topic": TopicGeneral})
}
