// Package httputil holds small net/http helpers shared by the process's
// HTTP surface (healthz, metrics).
package httputil

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "http")

// Errorf replies to an HTTP request with the specified error, also logging
// it at Warn level.
func Errorf(w http.ResponseWriter, code int, msgfmt string, args ...interface{}) {
	http.Error(w, fmt.Sprintf(msgfmt, args...), code)
	log.Warnf(msgfmt, args...)
}
