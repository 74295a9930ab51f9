package patrex

import (
	"errors"
	"io"

	seelog "github.com/cihub/seelog"
)

// logger is the package-wide trace logger, disabled by default. It backs
// low-volume diagnostic logging in the tokenizer, treeifier, and (via
// Logger) the nfa and cyk packages — never anything required for
// correctness.
var logger seelog.LoggerInterface

func init() {
	DisableLog()
}

// DisableLog disables all library log output. This is the default.
func DisableLog() {
	logger = seelog.Disabled
}

// UseLogger routes library log output through an application's existing
// seelog logger.
func UseLogger(newLogger seelog.LoggerInterface) {
	logger = newLogger
}

// SetLogWriter routes library log output to writer, for applications that
// are not otherwise using seelog.
func SetLogWriter(writer io.Writer) error {
	if writer == nil {
		return errors.New("patrex: nil log writer")
	}
	newLogger, err := seelog.LoggerFromWriterWithMinLevel(writer, seelog.TraceLvl)
	if err != nil {
		return err
	}
	UseLogger(newLogger)
	return nil
}

// Logger returns the current package-wide logger, so collaborating packages
// (currently nfa and cyk) can share it without each maintaining their own
// global.
func Logger() seelog.LoggerInterface {
	return logger
}

// FlushLog flushes any buffered log output. Call before application
// shutdown if UseLogger/SetLogWriter was used.
func FlushLog() {
	logger.Flush()
}
