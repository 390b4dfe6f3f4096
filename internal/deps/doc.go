// Package deps checks the external executables the worker shells out to.
package deps
