package section

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "section")
