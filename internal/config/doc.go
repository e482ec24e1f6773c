// Package config loads the router configuration: listen addresses, ring
// tuning, the default dispersion and the static node pool.
package config
