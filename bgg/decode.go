package bgg

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// GameRecord is one decoded (game, ownership-status) entry from a collection
// document. Numeric fields default to zero and Name to "Unknown" when the
// source element is missing or malformed; decoding an item never fails.
type GameRecord struct {
	Name      string
	BGGID     int
	AvgRating float64

	Own        bool
	PrevOwned  bool
	ForTrade   bool
	Want       bool
	WantToPlay bool
	WantToBuy  bool
	Wishlist   bool
	Preordered bool

	MinPlayers  int
	MaxPlayers  int
	MinPlaytime int
	NumPlays    int
}

// ParseError indicates the collection document itself could not be parsed.
// Malformed fields inside a parseable document never produce a ParseError;
// they fall back to defaults instead.
type ParseError struct {
	err error
}

func (e *ParseError) Error() string { return "parse collection document: " + e.err.Error() }

func (e *ParseError) Unwrap() error { return e.err }

// collectionDoc mirrors the BGG collection XML shape. All leaf values are kept
// as strings and coerced afterwards so one malformed attribute cannot abort
// the decode.
type collectionDoc struct {
	Items []itemNode `xml:"item"`
}

type itemNode struct {
	ObjectID string      `xml:"objectid,attr"`
	Name     *nameNode   `xml:"name"`
	Status   *statusNode `xml:"status"`
	Stats    *statsNode  `xml:"stats"`
	NumPlays string      `xml:"numplays"`
}

type nameNode struct {
	Value string `xml:",chardata"`
}

type statusNode struct {
	Own        string `xml:"own,attr"`
	PrevOwned  string `xml:"prevowned,attr"`
	ForTrade   string `xml:"fortrade,attr"`
	Want       string `xml:"want,attr"`
	WantToPlay string `xml:"wanttoplay,attr"`
	WantToBuy  string `xml:"wanttobuy,attr"`
	Wishlist   string `xml:"wishlist,attr"`
	Preordered string `xml:"preordered,attr"`
}

type statsNode struct {
	MinPlayers  string      `xml:"minplayers,attr"`
	MaxPlayers  string      `xml:"maxplayers,attr"`
	MinPlaytime string      `xml:"minplaytime,attr"`
	Rating      *ratingNode `xml:"rating"`
}

type ratingNode struct {
	Average *averageNode `xml:"average"`
}

type averageNode struct {
	Value string `xml:"value,attr"`
}

// DecodeCollection parses a collection document into GameRecords, one per item
// element in document order. Only an unparseable document is an error (a
// *ParseError); per-field problems degrade to the documented defaults.
func DecodeCollection(body []byte) ([]GameRecord, error) {
	var doc collectionDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, &ParseError{err: err}
	}
	records := make([]GameRecord, 0, len(doc.Items))
	for _, item := range doc.Items {
		records = append(records, decodeItem(item))
	}
	return records, nil
}

func decodeItem(item itemNode) GameRecord {
	rec := GameRecord{
		Name:     "Unknown",
		BGGID:    coerceInt(item.ObjectID, 0),
		NumPlays: coerceInt(item.NumPlays, 0),
	}
	if item.Name != nil && strings.TrimSpace(item.Name.Value) != "" {
		rec.Name = strings.TrimSpace(item.Name.Value)
	}
	if s := item.Status; s != nil {
		rec.Own = flagSet(s.Own)
		rec.PrevOwned = flagSet(s.PrevOwned)
		rec.ForTrade = flagSet(s.ForTrade)
		rec.Want = flagSet(s.Want)
		rec.WantToPlay = flagSet(s.WantToPlay)
		rec.WantToBuy = flagSet(s.WantToBuy)
		rec.Wishlist = flagSet(s.Wishlist)
		rec.Preordered = flagSet(s.Preordered)
	}
	if st := item.Stats; st != nil {
		rec.MinPlayers = coerceInt(st.MinPlayers, 0)
		rec.MaxPlayers = coerceInt(st.MaxPlayers, 0)
		rec.MinPlaytime = coerceInt(st.MinPlaytime, 0)
		if st.Rating != nil && st.Rating.Average != nil {
			rec.AvgRating = coerceFloat(st.Rating.Average.Value, 0.0)
		}
	}
	return rec
}

// flagSet interprets a BGG status attribute: "1" is true, anything else
// (including absence) is false.
func flagSet(v string) bool { return v == "1" }

// coerceInt converts s to an int, returning def on empty or malformed input.
func coerceInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// coerceFloat converts s to a float64, returning def on empty or malformed input.
func coerceFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return def
	}
	return f
}
