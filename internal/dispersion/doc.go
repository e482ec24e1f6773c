// Package dispersion describes how many distinct nodes a single lookup
// returns and whether the candidates after the primary are shuffled.
package dispersion
