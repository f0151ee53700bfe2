package codec

import (
	"regexp"
)

// Symbology identifies a barcode symbology by its wire identifier.
type Symbology string

const (
	SymbologyEAN13UPCA            Symbology = "ean13Upca"
	SymbologyUPCE                 Symbology = "upce"
	SymbologyEAN8                 Symbology = "ean8"
	SymbologyCode39               Symbology = "code39"
	SymbologyCode93               Symbology = "code93"
	SymbologyCode128              Symbology = "code128"
	SymbologyCode11               Symbology = "code11"
	SymbologyCode25               Symbology = "code25"
	SymbologyCodabar              Symbology = "codabar"
	SymbologyInterleavedTwoOfFive Symbology = "interleavedTwoOfFive"
	SymbologyMSIPlessey           Symbology = "msiPlessey"
	SymbologyQR                   Symbology = "qr"
	SymbologyDataMatrix           Symbology = "dataMatrix"
	SymbologyAztec                Symbology = "aztec"
	SymbologyMaxiCode             Symbology = "maxicode"
	SymbologyDotCode              Symbology = "dotcode"
	SymbologyKIX                  Symbology = "kix"
	SymbologyRM4SCC               Symbology = "rm4scc"
	SymbologyGS1Databar           Symbology = "databar"
	SymbologyGS1DatabarExpanded   Symbology = "databarExpanded"
	SymbologyGS1DatabarLimited    Symbology = "databarLimited"
	SymbologyPDF417               Symbology = "pdf417"
	SymbologyMicroPDF417          Symbology = "microPdf417"
	SymbologyMicroQR              Symbology = "microQr"
	SymbologyCode32               Symbology = "code32"
	SymbologyLapa4SC              Symbology = "lapa4sc"
	SymbologyIATATwoOfFive        Symbology = "iata2of5"
	SymbologyMatrixTwoOfFive      Symbology = "matrix2of5"
	SymbologyUSPSIntelligentMail  Symbology = "uspsIntelligentMail"
)

// Symbologies lists every known symbology in wire order
var Symbologies = []Symbology{
	SymbologyEAN13UPCA, SymbologyUPCE, SymbologyEAN8, SymbologyCode39, SymbologyCode93,
	SymbologyCode128, SymbologyCode11, SymbologyCode25, SymbologyCodabar,
	SymbologyInterleavedTwoOfFive, SymbologyMSIPlessey, SymbologyQR, SymbologyDataMatrix,
	SymbologyAztec, SymbologyMaxiCode, SymbologyDotCode, SymbologyKIX, SymbologyRM4SCC,
	SymbologyGS1Databar, SymbologyGS1DatabarExpanded, SymbologyGS1DatabarLimited,
	SymbologyPDF417, SymbologyMicroPDF417, SymbologyMicroQR, SymbologyCode32,
	SymbologyLapa4SC, SymbologyIATATwoOfFive, SymbologyMatrixTwoOfFive,
	SymbologyUSPSIntelligentMail,
}

func (s Symbology) Valid() bool {
	for _, known := range Symbologies {
		if s == known {
			return true
		}
	}
	return false
}

// CompositeFlag describes composite code membership of a barcode.
type CompositeFlag string

const (
	CompositeFlagNone     CompositeFlag = "none"
	CompositeFlagUnknown  CompositeFlag = "unknown"
	CompositeFlagLinked   CompositeFlag = "linked"
	CompositeFlagGS1TypeA CompositeFlag = "gs1TypeA"
	CompositeFlagGS1TypeB CompositeFlag = "gs1TypeB"
	CompositeFlagGS1TypeC CompositeFlag = "gs1TypeC"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Quadrilateral struct {
	TopLeft     Point `json:"topLeft"`
	TopRight    Point `json:"topRight"`
	BottomRight Point `json:"bottomRight"`
	BottomLeft  Point `json:"bottomLeft"`
}

// Corners returns the corners in clockwise order starting from top-left
func (q Quadrilateral) Corners() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

type EncodingRange struct {
	IANAName   string `json:"ianaName"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

// Barcode is a recognized barcode as reported by the detection engine.
type Barcode struct {
	Symbology        Symbology       `json:"symbology"`
	Data             *string         `json:"data"`
	RawData          string          `json:"rawData"`
	AddOnData        *string         `json:"addOnData"`
	CompositeData    *string         `json:"compositeData"`
	CompositeRawData string          `json:"compositeRawData"`
	IsGS1DataCarrier bool            `json:"isGS1DataCarrier"`
	CompositeFlag    CompositeFlag   `json:"compositeFlag"`
	IsColorInverted  bool            `json:"isColorInverted"`
	SymbolCount      int             `json:"symbolCount"`
	FrameID          int             `json:"frameId"`
	EncodingRanges   []EncodingRange `json:"encodingRanges"`
	Location         Quadrilateral   `json:"location"`
}

// LocalizedOnlyBarcode is a barcode that was located but not decoded.
type LocalizedOnlyBarcode struct {
	Location Quadrilateral `json:"location"`
	FrameID  int           `json:"frameId"`
}

// TrackedBarcode is a barcode followed across frames by the tracker.
// Identifier is only meaningful together with the frame sequence it was
// reported in.
type TrackedBarcode struct {
	Identifier        int           `json:"identifier"`
	Barcode           Barcode       `json:"barcode"`
	Location          Quadrilateral `json:"location"`
	PredictedLocation Quadrilateral `json:"predictedLocation"`
	DeltaTime         float64       `json:"deltaTime"`
	ShouldAnimate     bool          `json:"shouldAnimateFromPreviousToNextState"`
}

// Color is a hex color, "#RRGGBB" or "#RRGGBBAA".
type Color string

var colorPattern = regexp.MustCompile(`^#([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

func (c Color) Valid() bool {
	return colorPattern.MatchString(string(c))
}

// Brush is the highlight painted over a tracked barcode.
type Brush struct {
	FillColor   Color   `json:"fillColor"`
	StrokeColor Color   `json:"strokeColor"`
	StrokeWidth float64 `json:"strokeWidth"`
}

func (b Brush) Valid() bool {
	return b.FillColor.Valid() && b.StrokeColor.Valid() && b.StrokeWidth >= 0
}

// Anchor is the point of a tracked barcode's bounds a view is attached to.
type Anchor string

const (
	AnchorTopLeft      Anchor = "topLeft"
	AnchorTopCenter    Anchor = "topCenter"
	AnchorTopRight     Anchor = "topRight"
	AnchorCenterLeft   Anchor = "centerLeft"
	AnchorCenter       Anchor = "center"
	AnchorCenterRight  Anchor = "centerRight"
	AnchorBottomLeft   Anchor = "bottomLeft"
	AnchorBottomCenter Anchor = "bottomCenter"
	AnchorBottomRight  Anchor = "bottomRight"
)

func (a Anchor) Valid() bool {
	switch a {
	case AnchorTopLeft, AnchorTopCenter, AnchorTopRight,
		AnchorCenterLeft, AnchorCenter, AnchorCenterRight,
		AnchorBottomLeft, AnchorBottomCenter, AnchorBottomRight:
		return true
	}
	return false
}

type MeasureUnit string

const (
	MeasureUnitPixel    MeasureUnit = "pixel"
	MeasureUnitDIP      MeasureUnit = "dip"
	MeasureUnitFraction MeasureUnit = "fraction"
)

func (u MeasureUnit) Valid() bool {
	return u == MeasureUnitPixel || u == MeasureUnitDIP || u == MeasureUnitFraction
}

type NumberWithUnit struct {
	Value float64     `json:"value"`
	Unit  MeasureUnit `json:"unit"`
}

// PointWithUnit is the offset of a view relative to its anchor.
type PointWithUnit struct {
	X NumberWithUnit `json:"x"`
	Y NumberWithUnit `json:"y"`
}

// ZeroOffset is remembered when the host sends an unusable offset
var ZeroOffset = PointWithUnit{
	X: NumberWithUnit{Value: 0, Unit: MeasureUnitPixel},
	Y: NumberWithUnit{Value: 0, Unit: MeasureUnitPixel},
}

func (p PointWithUnit) Valid() bool {
	return p.X.Unit.Valid() && p.Y.Unit.Valid()
}

type ViewOptions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Scale  float64 `json:"scale"`
}

// View is a rendered view the host wants attached to a tracked barcode.
// Data holds the base64 encoded image.
type View struct {
	Data    string      `json:"data"`
	Options ViewOptions `json:"options"`
}

func (v View) Valid() bool {
	return v.Data != ""
}

// SelectionIdentifier is the stable content-derived key of a barcode used
// by selection counters. It survives across frames, unlike tracker identifiers.
func SelectionIdentifier(b Barcode) string {
	data := ""
	if b.Data != nil {
		data = *b.Data
	}
	return data + string(b.Symbology)
}
