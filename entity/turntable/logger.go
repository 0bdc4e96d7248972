package turntable

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "turntable")
