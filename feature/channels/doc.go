// Package channels connects shop inventory to external marketplaces. It owns
// the provider abstraction, inbound order intake, the durable outbound sync
// job queue, and the poller that pulls new orders on a schedule.
package channels
