package phone

// Network is a carrier block within a country: the subscriber-number
// prefixes an operator owns.
type Network struct {
	Code     string
	Operator string
	Prefixes []string
}

// Country is one row of the classification table. Tables are data, not
// logic: declaration order is priority order for the ambiguous
// local-length match, so reordering entries changes behavior.
type Country struct {
	ISO         string
	Name        string
	CallingCode string
	LocalLength int // subscriber digits after the trunk 0 is dropped
	Networks    []Network
}

var countries = []Country{
	{
		ISO: "NG", Name: "Nigeria", CallingCode: "234", LocalLength: 10,
		Networks: []Network{
			{Code: "mtn-ng", Operator: "MTN Nigeria", Prefixes: []string{"803", "806", "703", "706", "813", "816", "810", "814", "903", "906", "916"}},
			{Code: "glo-ng", Operator: "Globacom", Prefixes: []string{"805", "807", "705", "815", "811", "905", "915"}},
			{Code: "airtel-ng", Operator: "Airtel Nigeria", Prefixes: []string{"802", "808", "708", "812", "701", "902", "901", "904", "907", "912"}},
			{Code: "9mobile-ng", Operator: "9mobile", Prefixes: []string{"809", "817", "818", "908", "909"}},
		},
	},
	{
		ISO: "GH", Name: "Ghana", CallingCode: "233", LocalLength: 9,
		Networks: []Network{
			{Code: "mtn-gh", Operator: "MTN Ghana", Prefixes: []string{"24", "54", "55", "59", "25"}},
			{Code: "telecel-gh", Operator: "Telecel Ghana", Prefixes: []string{"20", "50"}},
			{Code: "at-gh", Operator: "AT Ghana", Prefixes: []string{"26", "56", "27", "57"}},
		},
	},
	{
		ISO: "KE", Name: "Kenya", CallingCode: "254", LocalLength: 9,
		Networks: []Network{
			{Code: "safaricom-ke", Operator: "Safaricom", Prefixes: []string{"70", "71", "72", "74", "79", "11"}},
			{Code: "airtel-ke", Operator: "Airtel Kenya", Prefixes: []string{"73", "78", "10"}},
			{Code: "telkom-ke", Operator: "Telkom Kenya", Prefixes: []string{"77"}},
		},
	},
	{
		ISO: "ZA", Name: "South Africa", CallingCode: "27", LocalLength: 9,
		Networks: []Network{
			{Code: "vodacom-za", Operator: "Vodacom", Prefixes: []string{"82", "72", "79", "76"}},
			{Code: "mtn-za", Operator: "MTN South Africa", Prefixes: []string{"83", "73", "78"}},
			{Code: "cellc-za", Operator: "Cell C", Prefixes: []string{"84", "74"}},
			{Code: "telkom-za", Operator: "Telkom Mobile", Prefixes: []string{"81"}},
		},
	},
	{
		ISO: "UG", Name: "Uganda", CallingCode: "256", LocalLength: 9,
		Networks: []Network{
			{Code: "mtn-ug", Operator: "MTN Uganda", Prefixes: []string{"77", "78", "76"}},
			{Code: "airtel-ug", Operator: "Airtel Uganda", Prefixes: []string{"70", "75", "74"}},
		},
	},
	{
		ISO: "TZ", Name: "Tanzania", CallingCode: "255", LocalLength: 9,
		Networks: []Network{
			{Code: "vodacom-tz", Operator: "Vodacom Tanzania", Prefixes: []string{"74", "75", "76"}},
			{Code: "airtel-tz", Operator: "Airtel Tanzania", Prefixes: []string{"68", "69", "78"}},
			{Code: "tigo-tz", Operator: "Tigo Tanzania", Prefixes: []string{"65", "67", "71"}},
		},
	},
	{
		ISO: "RW", Name: "Rwanda", CallingCode: "250", LocalLength: 9,
		Networks: []Network{
			{Code: "mtn-rw", Operator: "MTN Rwanda", Prefixes: []string{"78", "79"}},
			{Code: "airtel-rw", Operator: "Airtel Rwanda", Prefixes: []string{"72", "73"}},
		},
	},
	{
		ISO: "ZM", Name: "Zambia", CallingCode: "260", LocalLength: 9,
		Networks: []Network{
			{Code: "mtn-zm", Operator: "MTN Zambia", Prefixes: []string{"96", "76"}},
			{Code: "airtel-zm", Operator: "Airtel Zambia", Prefixes: []string{"97", "77"}},
			{Code: "zamtel-zm", Operator: "Zamtel", Prefixes: []string{"95", "75"}},
		},
	},
	{
		ISO: "SN", Name: "Senegal", CallingCode: "221", LocalLength: 9,
		Networks: []Network{
			{Code: "orange-sn", Operator: "Orange Senegal", Prefixes: []string{"77", "78"}},
			{Code: "free-sn", Operator: "Free Senegal", Prefixes: []string{"76"}},
			{Code: "expresso-sn", Operator: "Expresso", Prefixes: []string{"70"}},
		},
	},
	{
		ISO: "CM", Name: "Cameroon", CallingCode: "237", LocalLength: 9,
		Networks: []Network{
			{Code: "mtn-cm", Operator: "MTN Cameroon", Prefixes: []string{"67", "650", "651", "652", "653", "654"}},
			{Code: "orange-cm", Operator: "Orange Cameroon", Prefixes: []string{"69", "655", "656", "657", "658", "659"}},
		},
	},
	{
		ISO: "CI", Name: "Côte d'Ivoire", CallingCode: "225", LocalLength: 10,
		Networks: []Network{
			{Code: "orange-ci", Operator: "Orange CI", Prefixes: []string{"07"}},
			{Code: "mtn-ci", Operator: "MTN CI", Prefixes: []string{"05"}},
			{Code: "moov-ci", Operator: "Moov Africa CI", Prefixes: []string{"01"}},
		},
	},
	{
		ISO: "EG", Name: "Egypt", CallingCode: "20", LocalLength: 10,
		Networks: []Network{
			{Code: "vodafone-eg", Operator: "Vodafone Egypt", Prefixes: []string{"10"}},
			{Code: "etisalat-eg", Operator: "Etisalat Misr", Prefixes: []string{"11"}},
			{Code: "orange-eg", Operator: "Orange Egypt", Prefixes: []string{"12"}},
			{Code: "we-eg", Operator: "WE", Prefixes: []string{"15"}},
		},
	},
	{
		ISO: "ET", Name: "Ethiopia", CallingCode: "251", LocalLength: 9,
		Networks: []Network{
			{Code: "ethiotel-et", Operator: "Ethio Telecom", Prefixes: []string{"91", "92", "93", "94"}},
			{Code: "safaricom-et", Operator: "Safaricom Ethiopia", Prefixes: []string{"70"}},
		},
	},
}

// internationalCodes covers common destinations outside the coverage
// tables so they still classify to a country. Sends to these are
// accepted with a warning, not rejected.
var internationalCodes = []Country{
	{ISO: "US", Name: "United States", CallingCode: "1", LocalLength: 10},
	{ISO: "GB", Name: "United Kingdom", CallingCode: "44", LocalLength: 10},
	{ISO: "FR", Name: "France", CallingCode: "33", LocalLength: 9},
	{ISO: "DE", Name: "Germany", CallingCode: "49", LocalLength: 10},
	{ISO: "IN", Name: "India", CallingCode: "91", LocalLength: 10},
	{ISO: "CN", Name: "China", CallingCode: "86", LocalLength: 11},
	{ISO: "BR", Name: "Brazil", CallingCode: "55", LocalLength: 10},
	{ISO: "AE", Name: "United Arab Emirates", CallingCode: "971", LocalLength: 9},
	{ISO: "SA", Name: "Saudi Arabia", CallingCode: "966", LocalLength: 9},
	{ISO: "CA", Name: "Canada", CallingCode: "1", LocalLength: 10},
}

// Countries exposes the coverage table for seeding and tests.
func Countries() []Country {
	return countries
}
