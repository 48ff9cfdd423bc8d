package logging

import "log"

// Debug controls whether debug logs are printed.
var Debug bool

// Debugf logs a formatted debug message when Debug is enabled.
func Debugf(format string, v ...any) {
	if Debug {
		log.Printf("DEBUG: "+format, v...)
	}
}

// Setup configures the standard logger used across the program.
func Setup(debug bool) {
	Debug = debug
	log.SetPrefix("[checkers] ")
	flags := log.LstdFlags
	if debug {
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)
}
