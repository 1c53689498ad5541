// Package nsqlog adapts the log lines emitted by the embedded nsqd
// daemon and its go-nsq producer/consumer clients into structured
// go-ethereum/log records, so broker transport noise shows up in the
// same log stream and format as the rest of the client.
package nsqlog

import (
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// DaemonLogger wraps the log lines emitted by the embedded nsqd process.
type DaemonLogger struct {
	Logger log.Logger
}

// Output implements the nsqd lg.Logger interface.
func (l *DaemonLogger) Output(maxdepth int, s string) error {
	level := strings.Split(s, " ")[0]
	s = s[len(level)+1:]

	module := strings.Split(s, " ")[0]
	if len(module) > 0 && module[len(module)-1] == ':' {
		module, s = module[:len(module)-1], s[len(module)+1:]
	} else {
		module = ""
	}

	logger := l.Logger
	if module != "" {
		logger = l.Logger.New("module", strings.ToLower(module))
	}
	switch level {
	case "DEBUG:":
		logger.Trace("nsqd log", "msg", s)
	case "INFO:":
		logger.Debug("nsqd log", "msg", s)
	case "WARNING:":
		logger.Warn("nsqd log", "msg", s)
	case "ERROR:":
		logger.Error("nsqd log", "msg", s)
	default:
		logger.Error("nsqd log (unknown level)", "msg", s)
	}
	return nil
}

// ProducerLogger wraps the log lines emitted by an *nsq.Producer.
type ProducerLogger struct {
	Logger log.Logger
}

func (l *ProducerLogger) Output(maxdepth int, s string) error {
	level := s[:3]
	s = strings.TrimSpace(s[3:])

	id := strings.Split(s, " ")[0]
	s = s[len(id)+1:]

	addr := strings.Trim(strings.Split(s, " ")[0], "()")
	s = s[len(addr)+2+1:]

	logger := l.Logger.New("id", id, "nsqd", addr)
	switch level {
	case "DBG":
		logger.Trace("nsq producer log", "msg", s)
	case "DEB", "INF":
		logger.Debug("nsq producer log", "msg", s)
	case "ERR":
		logger.Error("nsq producer log", "msg", s)
	default:
		logger.Error("nsq producer log (unknown level)", "msg", s)
	}
	return nil
}

// ConsumerLogger wraps the log lines emitted by an *nsq.Consumer.
type ConsumerLogger struct {
	Logger log.Logger
}

func (l *ConsumerLogger) Output(maxdepth int, s string) error {
	level := s[:3]
	s = strings.TrimSpace(s[3:])

	id := strings.Split(s, " ")[0]
	s = s[len(id)+1:]

	sub := strings.Trim(strings.Split(s, " ")[0], "[]")
	s = s[len(sub)+2+1:]

	logger := l.Logger.New("id", id, "sub", sub)
	switch level {
	case "DBG":
		logger.Trace("nsq consumer log", "msg", s)
	case "INF", "DEB":
		logger.Debug("nsq consumer log", "msg", s)
	case "ERR":
		logger.Error("nsq consumer log", "msg", s)
	default:
		logger.Error("nsq consumer log (unknown level)", "msg", s)
	}
	return nil
}
