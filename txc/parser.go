package txc

import (
	"bytes"
	"encoding/xml"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spkg/bom"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Load reads and parses a document from disk. The only hard failure is
// an unreadable path; malformed content comes back as a partial
// document with diagnostics.
func Load(path string) (*Document, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, &NotFoundError{Path: path}
	}
	doc := ParseBytes(buf)
	doc.Name = filepath.Base(path)
	return doc, nil
}

// ParseBytes parses a document held in memory.
func ParseBytes(buf []byte) *Document {
	return Parse(bytes.NewReader(buf))
}

// charsetReader lets the decoder handle the non-UTF-8 encodings some
// TXC producers still emit (typically ISO-8859-1).
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return nil, errors.Errorf("unsupported charset %q", charset)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

// Parse streams the XML, materializing only the known subtrees.
// Elements are matched by local name, since real-world documents mix
// default and prefixed namespaces freely; anything unrecognized is
// skipped. Invalid XML never raises: parsing stops at the damage and
// whatever was read stays on the document, with the failure recorded
// in Diagnostics.
func Parse(r io.Reader) *Document {
	doc := &Document{}

	d := xml.NewDecoder(bom.NewReader(r))
	d.CharsetReader = charsetReader
	d.Strict = false

	decode := func(element string, v interface{}, se *xml.StartElement) bool {
		if err := d.DecodeElement(v, se); err != nil {
			line, _ := d.InputPos()
			doc.Diagnostics = append(doc.Diagnostics, Diagnostic{
				Element: element,
				Line:    line,
				Reason:  err.Error(),
			})
			return false
		}
		return true
	}

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			line, _ := d.InputPos()
			doc.Diagnostics = append(doc.Diagnostics, Diagnostic{
				Line:   line,
				Reason: err.Error(),
			})
			break
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch se.Name.Local {
		case "TransXChange":
			for _, a := range se.Attr {
				if a.Name.Local == "SchemaVersion" {
					doc.SchemaVersion = a.Value
				}
			}

		case "Operator", "LicensedOperator":
			var op Operator
			if decode("Operator", &op, &se) {
				doc.Operators = append(doc.Operators, op)
			}

		case "AnnotatedStopPointRef":
			var sp annotatedStopPointXML
			if decode("AnnotatedStopPointRef", &sp, &se) {
				doc.StopPoints = append(doc.StopPoints, StopPoint{
					Ref:        sp.Ref,
					CommonName: sp.CommonName,
					Location:   sp.Location,
				})
			}

		case "StopPoint":
			var sp fullStopPointXML
			if decode("StopPoint", &sp, &se) {
				doc.StopPoints = append(doc.StopPoints, StopPoint{
					Ref:        sp.AtcoCode,
					CommonName: sp.CommonName,
					Location:   sp.Location,
				})
			}

		case "RouteSection":
			var rs RouteSection
			if decode("RouteSection", &rs, &se) {
				doc.RouteSections = append(doc.RouteSections, rs)
			}

		case "Route":
			var rt Route
			if decode("Route", &rt, &se) {
				doc.Routes = append(doc.Routes, rt)
			}

		case "JourneyPatternSection":
			var jps JourneyPatternSection
			if decode("JourneyPatternSection", &jps, &se) {
				doc.JourneyPatternSections = append(doc.JourneyPatternSections, jps)
			}

		case "Service":
			var svc Service
			if decode("Service", &svc, &se) {
				doc.Services = append(doc.Services, svc)
			}

		case "VehicleJourney":
			var vj VehicleJourney
			if decode("VehicleJourney", &vj, &se) {
				doc.VehicleJourneys = append(doc.VehicleJourneys, vj)
			}
		}
	}

	return doc
}
