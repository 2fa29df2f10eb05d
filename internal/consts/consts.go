// Package consts defines application-wide constants.
package consts

import "time"

const (
	// DefaultHandlerTimeout is the default timeout for HTTP handlers.
	DefaultHandlerTimeout = 30 * time.Second
	// DefaultSessionID is used when a caller does not identify itself.
	DefaultSessionID = "anonymous"
)

// HTTP response messages.
const (
	// RespInvalidRequestBody is returned when the request body is invalid.
	RespInvalidRequestBody = "invalid request body"
	// RespQueryParamMissing is returned when a required query parameter is missing or invalid.
	RespQueryParamMissing = "query param missing or invalid"
	// RespUnprocessableEntity is returned when the request cannot be processed.
	RespUnprocessableEntity = "unprocessable entity"
	// RespJobSubmitted is returned when a job is successfully submitted.
	RespJobSubmitted = "job submitted"
	// RespJobSubmitFail is returned when a job cannot be submitted.
	RespJobSubmitFail = "job submit failed"
	// RespJobRetrieved is returned when a job is successfully retrieved.
	RespJobRetrieved = "job retrieved"
	// RespJobsRetrieved is returned when jobs are successfully retrieved.
	RespJobsRetrieved = "jobs retrieved"
	// RespJobNotFound is returned when a job is not found.
	RespJobNotFound = "job not found"
	// RespJobCancelled is returned when a job is cancelled.
	RespJobCancelled = "job cancelled"
	// RespJobNotCancellable is returned when a job is missing or already terminal.
	RespJobNotCancellable = "job not cancellable"
	// RespNoJobs is returned when there are no jobs for the session.
	RespNoJobs = "no jobs"
	// RespStreamFail is returned when a stream cannot be started.
	RespStreamFail = "stream failed"
	// RespTooManyStreams is returned when the per-video stream cap is reached.
	RespTooManyStreams = "too many concurrent streams"
)

// Platform identifiers.
const (
	// PlatformYouTube is the YouTube platform identifier.
	PlatformYouTube = "youtube"
	// PlatformGeneric is the fallback platform identifier.
	PlatformGeneric = "generic"
)

// Cache backend identifiers.
const (
	// CacheBackendMemory selects the in-process result cache.
	CacheBackendMemory = "memory"
	// CacheBackendRedis selects the Redis-backed result cache.
	CacheBackendRedis = "redis"
)
