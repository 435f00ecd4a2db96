/*
Package observability provides tools for monitoring the dispatcher.

It includes Prometheus metrics exposed through domain.LifecycleHooks, structured
logging hooks, and an Emitter that records the named events handlers emit.
*/
package observability
