// Package service is the concurrency boundary of the flash log. The store
// and backend are single threaded; LogService serializes gRPC handlers, the
// exporter job and log tees behind one mutex.
package service
