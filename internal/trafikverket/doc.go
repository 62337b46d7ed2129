// Package trafikverket is a client for the camera objects of the
// Trafikverket open traffic data API.
//
// Requests are XML documents posted to /v2/data.json; responses are JSON.
// Failures are reported through the sentinel errors of this package so
// callers can tell an authentication problem, which needs a new API key,
// from lookups that may succeed on a later attempt.
package trafikverket
