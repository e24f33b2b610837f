package cache

import "fmt"

// Key builders for the hot tier. Every calendar-shaped key embeds the
// schema version so a format change invalidates by construction instead
// of by deletion.

// CalendarKey addresses one zone-year-method yearly calendar.
func CalendarKey(schema, zoneID string, year int, methodKey string) string {
	return fmt.Sprintf("calendar:%s:%s:%d:%s", schema, zoneID, year, methodKey)
}

// DailyKey addresses one zone-date-method daily record, used while a
// yearly fetch is still in flight.
func DailyKey(schema, zoneID, date, methodKey string) string {
	return fmt.Sprintf("daily:%s:%s:%s:%s", schema, zoneID, date, methodKey)
}

// AliasKey addresses the hot copy of a zone alias.
func AliasKey(schema, sourceZoneID, methodKey string) string {
	return fmt.Sprintf("alias:%s:%s:%s", schema, sourceZoneID, methodKey)
}

// FetchLockKey is the cross-process claim for one calendar fetch.
func FetchLockKey(zoneID string, year int, methodKey string) string {
	return fmt.Sprintf("lock:calendar_fetch:%s:%d:%s", zoneID, year, methodKey)
}
