// Package textutil holds small string helpers shared across packages.
package textutil
