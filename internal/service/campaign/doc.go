// Package campaign implements campaign lifecycle management and audience
// resolution.
//
// The service layer contains the business logic for creating, scheduling,
// and cancelling campaigns and for turning a recipient list into email jobs.
// It depends on the repository interfaces defined in this package and never
// imports from api/.
//
// Repository implementations live in repository/postgres/.
package campaign
