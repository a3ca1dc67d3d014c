// Package redis provides the Redis client used for webhook duplicate
// suppression, instrumented with metrics and a circuit breaker.
package redis
