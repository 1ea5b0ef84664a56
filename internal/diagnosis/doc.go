// Package diagnosis provides the core orchestration engine for incident
// diagnosis. It defines the normalized analysis result model, the adapter
// and fallback contracts, the race Coordinator (concurrent fan-out with
// first-adequate-wins and cancellation), the consensus Merge for comparison
// mode, the Service business boundary, and the Store persistence interface.
package diagnosis
