/*
Package workers sizes worker pools for containerized environments.

runtime.NumCPU reports the host's CPUs, while GOMAXPROCS follows the
container CPU limit. Worker counts are derived from GOMAXPROCS so that a
warm run in a pod limited to two CPUs does not start sixty-four decoders.

	n := workers.ForCPU(8) // one per CPU, at most 8

Operators can override the computation:

	THUMBCACHE_WORKERS=4
*/
package workers
