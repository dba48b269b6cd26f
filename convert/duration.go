package convert

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// parseDuration converts an ISO-8601 duration ("PT5M", "PT1H30M",
// "P1DT2H") to whole seconds. Fractional seconds round down. TXC run
// and wait times never carry year or month components, so those are
// rejected.
func parseDuration(s string) (int, error) {
	orig := s
	if s == "" {
		return 0, errors.New("empty duration")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return 0, errors.Errorf("malformed duration '%s'", orig)
	}
	s = s[1:]

	datePart := s
	timePart := ""
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		datePart, timePart = s[:i], s[i+1:]
	}

	total := 0

	scan := func(part string, units map[byte]int) error {
		num := ""
		for i := 0; i < len(part); i++ {
			c := part[i]
			if (c >= '0' && c <= '9') || c == '.' {
				num += string(c)
				continue
			}
			mult, known := units[c]
			if !known || num == "" {
				return errors.Errorf("malformed duration '%s'", orig)
			}
			v, err := strconv.ParseFloat(num, 64)
			if err != nil {
				return errors.Errorf("malformed duration '%s'", orig)
			}
			total += int(v * float64(mult))
			num = ""
		}
		if num != "" {
			return errors.Errorf("malformed duration '%s'", orig)
		}
		return nil
	}

	if err := scan(datePart, map[byte]int{'D': 86400, 'W': 7 * 86400}); err != nil {
		return 0, err
	}
	if err := scan(timePart, map[byte]int{'H': 3600, 'M': 60, 'S': 1}); err != nil {
		return 0, err
	}

	if negative {
		total = -total
	}
	return total, nil
}
