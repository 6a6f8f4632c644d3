// Package clients holds every outbound integration of the portal: the
// tutoring backend REST API, MongoDB, Redis and RabbitMQ.
package clients

import "github.com/sirupsen/logrus"

var log = logrus.StandardLogger()
