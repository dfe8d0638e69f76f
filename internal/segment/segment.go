// Package segment computes SMS segmentation: how many billable units a
// message body occupies and under which encoding. The thresholds mirror
// GSM 03.38 concatenation rules and drive billing directly.
package segment

// Encoding is the SMS payload encoding class.
type Encoding string

const (
	EncodingGSM7 Encoding = "GSM-7"
	EncodingUCS2 Encoding = "UCS-2"
)

const (
	gsm7SingleLimit = 160
	gsm7ConcatLimit = 153
	ucs2SingleLimit = 70
	ucs2ConcatLimit = 67
)

// gsm7Set is the GSM 03.38 default alphabet plus its extension table.
var gsm7Set = buildGSM7Set()

func buildGSM7Set() map[rune]struct{} {
	const base = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
		"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑܧ¿abcdefghijklmnopqrstuvwxyzäöñüà"
	const extension = "^{}\\[~]|€\f"

	set := make(map[rune]struct{}, len(base)+len(extension))
	for _, r := range base {
		set[r] = struct{}{}
	}
	for _, r := range extension {
		set[r] = struct{}{}
	}
	return set
}

// Segments is the segmentation result for one message body.
type Segments struct {
	Length       int      `json:"length"` // characters, not bytes
	Encoding     Encoding `json:"encoding"`
	CharsPerUnit int      `json:"chars_per_unit"`
	Units        int      `json:"units"`
}

// Calculate determines encoding and unit count for text. Empty text is
// zero units. A body that fits the single-message limit is one unit;
// anything longer is split at the smaller concatenated-segment size.
func Calculate(text string) Segments {
	runes := []rune(text)
	length := len(runes)

	encoding := EncodingGSM7
	single, concat := gsm7SingleLimit, gsm7ConcatLimit
	for _, r := range runes {
		if _, ok := gsm7Set[r]; !ok {
			encoding = EncodingUCS2
			single, concat = ucs2SingleLimit, ucs2ConcatLimit
			break
		}
	}

	s := Segments{
		Length:       length,
		Encoding:     encoding,
		CharsPerUnit: concat,
	}
	switch {
	case length == 0:
		s.Units = 0
	case length <= single:
		s.Units = 1
	default:
		s.Units = (length + concat - 1) / concat
	}
	return s
}
