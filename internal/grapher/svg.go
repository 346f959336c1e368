package grapher

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// svgSize reads the pixel dimensions of the root <svg> element, falling back
// to its viewBox when width or height are absent.
func svgSize(body []byte) (int, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, 0, errors.New("no <svg> element in export")
			}
			return 0, 0, fmt.Errorf("parse svg: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return 0, 0, fmt.Errorf("unexpected root element <%s>", start.Name.Local)
		}
		return rootSize(start.Attr)
	}
}

func rootSize(attrs []xml.Attr) (int, int, error) {
	var width, height, viewBox string
	for _, a := range attrs {
		switch a.Name.Local {
		case "width":
			width = a.Value
		case "height":
			height = a.Value
		case "viewBox":
			viewBox = a.Value
		}
	}
	w, wok := pixels(width)
	h, hok := pixels(height)
	if wok && hok {
		return w, h, nil
	}
	fields := strings.FieldsFunc(viewBox, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) == 4 {
		vw, werr := strconv.ParseFloat(fields[2], 64)
		vh, herr := strconv.ParseFloat(fields[3], 64)
		if werr == nil && herr == nil && vw > 0 && vh > 0 {
			return int(math.Round(vw)), int(math.Round(vh)), nil
		}
	}
	return 0, 0, errors.New("svg export has no usable width/height")
}

func pixels(v string) (int, bool) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	if v == "" || strings.HasSuffix(v, "%") {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return int(math.Round(f)), true
}
