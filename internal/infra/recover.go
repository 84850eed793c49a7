package infra

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Go runs f on its own goroutine and logs a panic instead of crashing.
func Go(id string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf(`Job "%s" panics with message: %v, %s`, id, r, identifyPanic())
			}
		}()
		f()
	}()
}

// Recover turns a panic of the surrounding function into an error. Use it as
// `defer infra.Recover("id", &err)`.
func Recover(id string, errp *error) {
	r := recover()
	if r == nil {
		return
	}
	log.Errorf(`Handler "%s" panics with message: %v, %s`, id, r, identifyPanic())
	if errp != nil {
		*errp = errors.Errorf("%s panicked: %v", id, r)
	}
}

func identifyPanic() string {
	var name, file string
	var line int
	var pc [16]uintptr

	n := runtime.Callers(3, pc[:])
	for _, pc := range pc[:n] {
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		file, line = fn.FileLine(pc)
		name = fn.Name()
		if !strings.HasPrefix(name, "runtime.") {
			break
		}
	}

	switch {
	case name != "":
		return fmt.Sprintf("%v:%v", name, line)
	case file != "":
		return fmt.Sprintf("%v:%v", file, line)
	}

	return fmt.Sprintf("pc:%x", pc)
}
