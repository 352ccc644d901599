package main

import log "github.com/sirupsen/logrus"

// setLogLevel applies the --log.level flag. Unknown names fall back to
// info rather than aborting the daemon.
func setLogLevel(l string) {
	level, err := log.ParseLevel(l)
	if err != nil {
		log.Warnf("unknown log level %q, using info", l)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
