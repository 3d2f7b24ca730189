package faultline

// Deploy carries deployment metadata for the deploy-tracking endpoint.
// Environment defaults to the notifier's configured environment when empty.
type Deploy struct {
	Environment string
	Repository  string
	Revision    string
	Version     string
	Username    string
}
