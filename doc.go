// Package cyberpay integrates an online store's checkout with the
// CyberSource card-payment processor.
//
// # Overview
//
// The hard parts of the integration live in three tightly coupled pieces:
// constructing processor-authenticated HTTP requests with the HMAC-based
// HTTP signature scheme, orchestrating multi-step payment operations with a
// compensating reversal when a later step fails, and keeping the merchant's
// local transaction state synchronized with the processor's asynchronous
// webhook notifications and with administrative state changes.
//
// # Architecture
//
//	checkout request ──► gateway.Client ──signed──► CyberSource REST API
//	                         │                            │
//	                         ▼                            ▼ webhook
//	                  order.Store  ◄──── reconcile.Reconciler
//
// The gateway package builds and signs requests, classifies processor
// failures into a fixed error taxonomy, and runs the authorize/capture/
// reverse saga. The reconcile package drives the local state machine from
// webhook notifications and turns administrative transitions into capture,
// void and refund calls, reverting the local state when the processor does
// not confirm them.
//
// # Quick start
//
//	client, err := gateway.NewClient(gateway.Config{
//		OrganizationID: "merchant_org",
//		AccessKey:      "access-key",
//		SecretKey:      base64Secret,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	resp, err := client.Authorize(ctx, request)
package cyberpay
