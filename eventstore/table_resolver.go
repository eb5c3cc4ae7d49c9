package eventstore

import (
	"strings"
)

const (
	// NamespaceSeparator separates the segments of a namespaced StreamName.
	NamespaceSeparator = `\`
	tableNameSuffix    = "_stream"
)

// TableResolver maps a StreamName to the name of the physical table holding its events.
type TableResolver struct {
	streamTableMap map[string]string
}

// NewTableResolver creates a TableResolver. Entries of streamTableMap win over the naming rule.
func NewTableResolver(streamTableMap map[string]string) TableResolver {
	overrides := make(map[string]string, len(streamTableMap))
	for streamName, tableName := range streamTableMap {
		overrides[streamName] = tableName
	}

	return TableResolver{streamTableMap: overrides}
}

// TableFor returns the table name for streamName.
//
// Without an override, the last namespace segment is taken, "-" is replaced by "_",
// the result is lower-cased and gets the "_stream" suffix unless it contains it already.
func (r TableResolver) TableFor(streamName StreamName) string {
	if tableName, ok := r.streamTableMap[streamName.String()]; ok {
		return tableName
	}

	name := strings.ReplaceAll(streamName.String(), "-", "_")
	if idx := strings.LastIndex(name, NamespaceSeparator); idx >= 0 {
		name = name[idx+len(NamespaceSeparator):]
	}

	tableName := strings.ToLower(name)
	if !strings.Contains(tableName, tableNameSuffix) {
		tableName += tableNameSuffix
	}

	return tableName
}
