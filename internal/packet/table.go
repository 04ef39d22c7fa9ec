package packet

// defaultTable is the vendor's quote schema set. Field ids are shared
// between packet types but their meaning is per-schema.
var defaultTable = []PacketSchema{
	{
		Type: Quote,
		Name: "quote",
		Fields: []FieldSpec{
			{ID: 65, Name: "symbol", Type: TypeString, Length: 20},
			{ID: 66, Name: PrecisionField, Type: TypeUint8, Length: 1},
			{ID: 67, Name: "ltp", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 68, Name: "open", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 69, Name: "high", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 70, Name: "low", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 71, Name: "close", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 72, Name: "chng", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 73, Name: "chngPer", Type: TypeFloat64, Length: 8, Format: FormatPercent},
			{ID: 74, Name: "atp", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 75, Name: "yHigh", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 76, Name: "yLow", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 77, Name: "ltq", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 78, Name: "vol", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 79, Name: "ttv", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 80, Name: "ucl", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 81, Name: "lcl", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 82, Name: "OI", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 83, Name: "OIChngPer", Type: TypeFloat64, Length: 8, Format: FormatPercent},
			{ID: 84, Name: "ltt", Type: TypeInt32, Length: 4, Format: FormatTimestamp},
			{ID: 87, Name: "bidprice", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 90, Name: "askprice", Type: TypeFloat64, Length: 8, Format: FormatMoney},
		},
	},
	{
		// Depth: 87-89 describe the bid side and 90-92 the ask side of one level.
		Type: Quote2,
		Name: "quote2",
		Fields: []FieldSpec{
			{ID: 65, Name: "symbol", Type: TypeString, Length: 20},
			{ID: 66, Name: PrecisionField, Type: TypeUint8, Length: 1},
			{ID: 85, Name: "totBuyQty", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 86, Name: "totSellQty", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 87, Name: "price", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 88, Name: "qty", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 89, Name: "no", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 90, Name: "price", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 91, Name: "qty", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 92, Name: "no", Type: TypeInt32, Length: 4, Format: FormatCount},
			{ID: 93, Name: "nDepth", Type: TypeUint8, Length: 1},
		},
	},
	{
		Type: Quote3,
		Name: "quote3",
		Fields: []FieldSpec{
			{ID: 65, Name: "symbol", Type: TypeString, Length: 20},
			{ID: 99, Name: "iv", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 100, Name: "atmiv", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 101, Name: "delta", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 102, Name: "theta", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 103, Name: "vega", Type: TypeFloat64, Length: 8, Format: FormatMoney},
			{ID: 104, Name: "gamma", Type: TypeFloat64, Length: 8, Format: FormatMoney},
		},
	},
}
