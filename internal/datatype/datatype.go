package datatype

import (
	"strconv"
	"strings"
	"time"
)

// Пакет datatype — кодек между "service string" (строковым значением
// атрибута на проводе) и типизированным Go-значением. Источником истины
// всегда остаётся строка; типизация лениво выполняется поверх неё.

// Форматы дат на проводе.
const (
	WireDate     = "2006-01-02"
	WireDateTime = "2006-01-02 15:04:05.000"
)

var intTypes = map[string]bool{
	"Byte": true, "SByte": true,
	"Int16": true, "Int32": true, "Int64": true,
	"UInt16": true, "UInt32": true, "UInt64": true,
	"NullableByte": true, "NullableSByte": true,
	"NullableInt16": true, "NullableInt32": true, "NullableInt64": true,
	"NullableUInt16": true, "NullableUInt32": true, "NullableUInt64": true,
}

var floatTypes = map[string]bool{
	"Single": true, "Double": true, "Decimal": true,
	"NullableSingle": true, "NullableDouble": true, "NullableDecimal": true,
}

var dateTimeTypes = map[string]bool{
	"Date": true, "NullableDate": true,
	"DateTime": true, "NullableDateTime": true,
	"DateTimeOffset": true, "NullableDateTimeOffset": true,
}

var boolTypes = map[string]bool{
	"Boolean": true, "NullableBoolean": true, "YesNo": true,
}

func IsInteger(typ string) bool  { return intTypes[typ] }
func IsFloat(typ string) bool    { return floatTypes[typ] }
func IsNumeric(typ string) bool  { return intTypes[typ] || floatTypes[typ] }
func IsDateTime(typ string) bool { return dateTimeTypes[typ] }
func IsBoolean(typ string) bool  { return boolTypes[typ] }

// IsDateOnly — тип без компоненты времени.
func IsDateOnly(typ string) bool { return typ == "Date" || typ == "NullableDate" }

// FromServiceString превращает строковое значение провода в типизированное.
// nil на входе даёт nil для любого типа.
func FromServiceString(value *string, typ string) any {
	if value == nil {
		return nil
	}
	s := *value
	switch {
	case boolTypes[typ]:
		b, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return nil
		}
		return b
	case intTypes[typ]:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil
		}
		return n
	case floatTypes[typ]:
		f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
		if err != nil {
			return nil
		}
		return f
	case dateTimeTypes[typ]:
		t, err := parseWireTime(s)
		if err != nil {
			return nil
		}
		return t
	default:
		// String, Guid, Time, KeyValueList, FlagsEnum и прочие остаются строками.
		return s
	}
}

// ToServiceString кодирует типизированное значение обратно в строку провода.
// nil кодируется как nil (отсутствие значения).
func ToServiceString(value any, typ string) *string {
	if value == nil {
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case bool:
		if v {
			s = "true"
		} else {
			s = "false"
		}
	case int:
		s = strconv.FormatInt(int64(v), 10)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 64)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if IsDateOnly(typ) {
			s = v.Format(WireDate)
		} else {
			s = v.Format(WireDateTime)
		}
	default:
		return nil
	}
	return &s
}

func parseWireTime(s string) (time.Time, error) {
	for _, layout := range []string{WireDateTime, "2006-01-02 15:04:05", WireDate, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Parse(WireDateTime, s)
}

// TrimTime убирает незначащие части значения типа Time:
// хвостовые нули дробной части, нулевой префикс дней и хвостовые ":00"
// ("0:09:30:00.0000000" -> "09:30").
func TrimTime(s string) string {
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	s = strings.TrimPrefix(s, "0:")
	for strings.HasSuffix(s, ":00") {
		s = s[:len(s)-3]
	}
	return s
}
