// Package lxcconf models a container's persisted configuration document
// as an ordered sequence of lines partitioned into managed lines (owned
// and rewritten by gpubridge) and unmanaged lines (preserved verbatim).
package lxcconf

import (
	"regexp"
	"strconv"
	"strings"
)

// MarkerComment is the comment line opening every managed block.
const MarkerComment = "# gpubridge: managed GPU passthrough block"

// LineKind classifies a configuration line.
type LineKind int

const (
	// LineUnmanaged is any line gpubridge does not own.
	LineUnmanaged LineKind = iota
	// LineMarker is the managed-block marker comment.
	LineMarker
	// LineCgroupRule is a GPU cgroup device-permission rule.
	LineCgroupRule
	// LineDeviceMount is a numbered GPU device-mount directive.
	LineDeviceMount
	// LineMountEntry is a GPU device/library bind-mount entry.
	LineMountEntry
)

// Line is one classified configuration line.
type Line struct {
	Kind LineKind
	Text string
	// DeviceIndex is the <N> of a devN directive, -1 otherwise.
	DeviceIndex int
}

// Managed reports whether the line belongs to the passthrough feature.
func (l Line) Managed() bool {
	return l.Kind != LineUnmanaged
}

var (
	cgroupRulePattern  = regexp.MustCompile(`^lxc\.cgroup2?\.devices\.allow:\s*c\s+(\d+):`)
	deviceMountPattern = regexp.MustCompile(`^dev(\d+):\s*([^,\s]+)`)
	mountEntryPattern  = regexp.MustCompile(`^lxc\.mount\.entry:\s*(\S+)`)
)

// Document is an ordered container configuration document.
type Document struct {
	Lines []Line
}

// Parse classifies every line of a configuration document. Unrecognized
// lines are unmanaged and preserved byte for byte.
func Parse(data string) *Document {
	raw := strings.Split(data, "\n")
	// A trailing newline yields one empty trailing element; drop it so
	// Render can reattach exactly one final newline.
	if len(raw) > 0 && raw[len(raw)-1] == "" {
		raw = raw[:len(raw)-1]
	}

	doc := &Document{Lines: make([]Line, 0, len(raw))}
	for _, text := range raw {
		doc.Lines = append(doc.Lines, classify(text))
	}
	return doc
}

func classify(text string) Line {
	trimmed := strings.TrimSpace(text)

	if trimmed == MarkerComment {
		return Line{Kind: LineMarker, Text: text, DeviceIndex: -1}
	}

	if m := cgroupRulePattern.FindStringSubmatch(trimmed); m != nil {
		major, err := strconv.Atoi(m[1])
		if err == nil && managedMajor(major) {
			return Line{Kind: LineCgroupRule, Text: text, DeviceIndex: -1}
		}
		return Line{Kind: LineUnmanaged, Text: text, DeviceIndex: -1}
	}

	if m := deviceMountPattern.FindStringSubmatch(trimmed); m != nil {
		index, err := strconv.Atoi(m[1])
		if err == nil && strings.HasPrefix(m[2], "/dev/nvidia") {
			return Line{Kind: LineDeviceMount, Text: text, DeviceIndex: index}
		}
		// A devN directive passing some other device stays untouched,
		// but its index is still needed for renumbering.
		if err == nil {
			return Line{Kind: LineUnmanaged, Text: text, DeviceIndex: index}
		}
		return Line{Kind: LineUnmanaged, Text: text, DeviceIndex: -1}
	}

	if m := mountEntryPattern.FindStringSubmatch(trimmed); m != nil {
		if passthroughPath(m[1]) {
			return Line{Kind: LineMountEntry, Text: text, DeviceIndex: -1}
		}
	}

	return Line{Kind: LineUnmanaged, Text: text, DeviceIndex: -1}
}

// managedMajor reports whether a cgroup rule's character-device major
// belongs to the GPU. 195 is the fixed nvidia major; nvidia-uvm and
// nvidia-caps receive dynamic majors from the 234-254 and 384-511 ranges.
func managedMajor(major int) bool {
	switch {
	case major == 195:
		return true
	case major >= 234 && major <= 254:
		return true
	case major >= 384 && major <= 511:
		return true
	}
	return false
}

// passthroughPath reports whether a bind-mount host path names a GPU
// device, driver library, or the bridge executable.
func passthroughPath(path string) bool {
	base := path[strings.LastIndex(path, "/")+1:]
	return strings.Contains(base, "nvidia") || strings.HasPrefix(base, "libcuda")
}

// StripManaged removes every managed line, returning how many were
// removed. Unmanaged lines keep their original relative order.
func (d *Document) StripManaged() int {
	kept := make([]Line, 0, len(d.Lines))
	removed := 0
	for _, line := range d.Lines {
		if line.Managed() {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	d.Lines = kept
	return removed
}

// Append adds raw lines to the end of the document, classifying each.
func (d *Document) Append(lines []string) {
	for _, text := range lines {
		d.Lines = append(d.Lines, classify(text))
	}
}

// ManagedLines returns the managed lines in document order.
func (d *Document) ManagedLines() []Line {
	var managed []Line
	for _, line := range d.Lines {
		if line.Managed() {
			managed = append(managed, line)
		}
	}
	return managed
}

// HasMarker reports whether the document contains a managed block marker.
func (d *Document) HasMarker() bool {
	for _, line := range d.Lines {
		if line.Kind == LineMarker {
			return true
		}
	}
	return false
}

// NextDeviceIndex returns the first devN index not taken by a surviving
// unmanaged device directive, so managed numbering never collides with
// passthrough entries owned by the operator.
func (d *Document) NextDeviceIndex() int {
	next := 0
	for _, line := range d.Lines {
		if line.Kind == LineUnmanaged && line.DeviceIndex >= next {
			next = line.DeviceIndex + 1
		}
	}
	return next
}

// Render serializes the document with a trailing newline. An empty
// document renders as an empty string.
func (d *Document) Render() string {
	if len(d.Lines) == 0 {
		return ""
	}
	var b strings.Builder
	for _, line := range d.Lines {
		b.WriteString(line.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
