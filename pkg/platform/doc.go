// Package platform is the client boundary to the external advertising
// platform API.
//
// Apply submits one change and returns the platform-confirmed old and new
// values. Failures are classified as TransientError (retryable) or
// PermanentError (rejected); the executor's retry policy keys off that
// classification. The HTTP client is wrapped with a per-account rate
// limiter. MockClient supports tests with scripted outcomes.
package platform
