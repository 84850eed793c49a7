package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

const (
	colorRed         = 31
	colorGreen       = 32
	colorYellow      = 33
	colorBlue        = 36
	colorGray        = 37
	colorLightGreen  = 92
	colorLightYellow = 93
	colorCyan        = 96
)

// PrimeFormatter renders logrus entries as key=value lines with sorted fields.
type PrimeFormatter struct {
	DisableColors bool
}

func (f *PrimeFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder

	f.pair(&b, "level", f.paint(levelColor(entry.Level), strings.ToUpper(entry.Level.String())[:4]))
	f.pair(&b, "ts", f.paint(colorLightYellow, entry.Time.Format("2006-01-02 15:04:05.000")))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		val := entry.Data[k]
		if err, ok := val.(error); ok {
			f.pair(&b, k, f.paint(colorRed, strconv.Quote(err.Error())))
			continue
		}
		s, err := sonic.MarshalString(val)
		if err != nil || s == "" {
			continue
		}
		valueColor := colorCyan
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			valueColor = colorGreen
		} else if strings.HasPrefix(s, `"`) {
			valueColor = colorLightYellow
		}
		f.pair(&b, k, f.paint(valueColor, s))
	}
	f.pair(&b, "msg", f.paint(colorLightGreen, strconv.Quote(entry.Message)))

	out := strings.NewReplacer("\r", `\r`, "\n", `\n`).Replace(b.String())
	return []byte(out + "\n"), nil
}

func (f *PrimeFormatter) pair(b *strings.Builder, key, value string) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(f.paint(colorCyan, key))
	b.WriteByte('=')
	b.WriteString(value)
}

func (f *PrimeFormatter) paint(color int, s string) string {
	if f.DisableColors {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}

func levelColor(level log.Level) int {
	switch level {
	case log.DebugLevel, log.TraceLevel:
		return colorGray
	case log.WarnLevel:
		return colorYellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		return colorRed
	default:
		return colorBlue
	}
}
