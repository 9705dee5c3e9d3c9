package culture

// Culture описывает один справочник локали: паттерны дат и чисел,
// используемые при форматировании displayValue
type Culture struct {
	Name       string     `yaml:"name"`
	DateFormat DateFormat `yaml:"dateFormat"`
	NumberFormat NumberFormat `yaml:"numberFormat"`
}

type DateFormat struct {
	ShortDatePattern string `yaml:"shortDatePattern"`
	ShortTimePattern string `yaml:"shortTimePattern"`
	// Дополнительные паттерны: LongDate, MonthDay и т.д.
	LongDatePattern string `yaml:"longDatePattern,omitempty"`
}

type NumberFormat struct {
	DecimalSeparator string `yaml:"decimalSeparator,omitempty"`
	GroupSeparator   string `yaml:"groupSeparator,omitempty"`
}

// Invariant — культура по умолчанию, когда каталог не загружен
// или запрошенная локаль в нём отсутствует. Паттерны — в нотации
// time.Format.
func Invariant() *Culture {
	return &Culture{
		Name: "",
		DateFormat: DateFormat{
			ShortDatePattern: "02/01/2006",
			ShortTimePattern: "15:04",
			LongDatePattern:  "2 January 2006",
		},
		NumberFormat: NumberFormat{
			DecimalSeparator: ".",
			GroupSeparator:   ",",
		},
	}
}
