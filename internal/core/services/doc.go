// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go. Apart from run IDs (google/uuid) they depend only on
// the domain and port packages.
package services
