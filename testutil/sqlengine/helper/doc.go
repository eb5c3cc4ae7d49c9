// Package helper provides fixtures and observability spies for the sqlengine test suite.
package helper
