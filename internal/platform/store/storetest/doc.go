// Package storetest starts disposable postgres, clickhouse, redis, minio
// and rabbitmq containers for integration tests. The helpers compile only
// under the integration build tags
package storetest
