package ingest

import (
	"encoding/xml"
	"io"
)

// OOXML part shapes. Tags carry local names only so that any namespace
// prefix matches.

type xmlRelationships struct {
	Items []xmlRelationship `xml:"Relationship"`
}

type xmlRelationship struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
	Mode   string `xml:"TargetMode,attr"`
}

type xmlPresentation struct {
	SlideIDs []struct {
		RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
	SlideSize *struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"sldSz"`
}

type xmlCoreProps struct {
	Title    string `xml:"title"`
	Creator  string `xml:"creator"`
	Subject  string `xml:"subject"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

type xmlAppProps struct {
	Slides      int    `xml:"Slides"`
	Application string `xml:"Application"`
}

// xmlSlide also fits notes slides, which share the cSld layout.
type xmlSlide struct {
	CSld struct {
		Name   string    `xml:"name,attr"`
		Bg     *xmlBg    `xml:"bg"`
		SpTree xmlSpTree `xml:"spTree"`
	} `xml:"cSld"`
	Transition *xmlTransition `xml:"transition"`
	Alternate  *struct {
		Choice struct {
			Transition *xmlTransition `xml:"transition"`
		} `xml:"Choice"`
		Fallback struct {
			Transition *xmlTransition `xml:"transition"`
		} `xml:"Fallback"`
	} `xml:"AlternateContent"`
}

func (s *xmlSlide) transition() *xmlTransition {
	if s.Transition != nil {
		return s.Transition
	}
	if s.Alternate != nil {
		if s.Alternate.Choice.Transition != nil {
			return s.Alternate.Choice.Transition
		}
		return s.Alternate.Fallback.Transition
	}
	return nil
}

type xmlBg struct {
	Pr *struct {
		Solid *xmlSolidFill `xml:"solidFill"`
		Grad  *xmlGradFill  `xml:"gradFill"`
		Blip  *xmlBlipFill  `xml:"blipFill"`
	} `xml:"bgPr"`
	Ref *struct {
		Color *xmlColor `xml:"srgbClr"`
	} `xml:"bgRef"`
}

type xmlSolidFill struct {
	Color *xmlColor `xml:"srgbClr"`
}

type xmlGradFill struct {
	Stops []struct {
		Pos   int       `xml:"pos,attr"`
		Color *xmlColor `xml:"srgbClr"`
	} `xml:"gsLst>gs"`
}

type xmlColor struct {
	Val string `xml:"val,attr"`
}

type xmlBlipFill struct {
	Blip struct {
		Embed string `xml:"embed,attr"`
		Link  string `xml:"link,attr"`
	} `xml:"blip"`
}

type xmlNonVisual struct {
	CNvPr struct {
		ID    string `xml:"id,attr"`
		Name  string `xml:"name,attr"`
		Descr string `xml:"descr,attr"`
	} `xml:"cNvPr"`
	NvPr struct {
		Ph *struct {
			Type string `xml:"type,attr"`
		} `xml:"ph"`
		Video *struct {
			Link string `xml:"link,attr"`
		} `xml:"videoFile"`
		Audio *struct {
			Link string `xml:"link,attr"`
		} `xml:"audioFile"`
	} `xml:"nvPr"`
}

type xmlXfrm struct {
	Off struct {
		X int64 `xml:"x,attr"`
		Y int64 `xml:"y,attr"`
	} `xml:"off"`
	Ext struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"ext"`
}

type xmlShape struct {
	NvSpPr xmlNonVisual `xml:"nvSpPr"`
	SpPr   struct {
		Xfrm     *xmlXfrm `xml:"xfrm"`
		PrstGeom *struct {
			Prst string `xml:"prst,attr"`
		} `xml:"prstGeom"`
		Solid *xmlSolidFill `xml:"solidFill"`
	} `xml:"spPr"`
	TxBody *xmlTxBody `xml:"txBody"`
}

type xmlTxBody struct {
	Paragraphs []struct {
		// field runs (a:fld) are not read
		Runs []struct {
			T string `xml:"t"`
		} `xml:"r"`
	} `xml:"p"`
}

type xmlPic struct {
	NvPicPr  xmlNonVisual `xml:"nvPicPr"`
	BlipFill xmlBlipFill  `xml:"blipFill"`
	SpPr     struct {
		Xfrm *xmlXfrm `xml:"xfrm"`
	} `xml:"spPr"`
}

type xmlGraphicFrame struct {
	NvPr        xmlNonVisual `xml:"nvGraphicFramePr"`
	Xfrm        *xmlXfrm     `xml:"xfrm"`
	GraphicData struct {
		URI string `xml:"uri,attr"`
	} `xml:"graphic>graphicData"`
}

// spNode is one child of a shape tree in document order.
type spNode struct {
	shape *xmlShape
	pic   *xmlPic
	frame *xmlGraphicFrame
	group *xmlSpTree
}

type xmlSpTree struct {
	nodes []spNode
}

// UnmarshalXML keeps shapes, pictures and frames in z-order, which a struct
// with one slice per kind would lose.
func (t *xmlSpTree) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			var node spNode
			switch el.Name.Local {
			case "sp", "cxnSp":
				node.shape = new(xmlShape)
				err = d.DecodeElement(node.shape, &el)
			case "pic":
				node.pic = new(xmlPic)
				err = d.DecodeElement(node.pic, &el)
			case "graphicFrame":
				node.frame = new(xmlGraphicFrame)
				err = d.DecodeElement(node.frame, &el)
			case "grpSp":
				node.group = new(xmlSpTree)
				err = d.DecodeElement(node.group, &el)
			default:
				err = d.Skip()
			}
			if err != nil {
				return err
			}
			if node != (spNode{}) {
				t.nodes = append(t.nodes, node)
			}
		case xml.EndElement:
			return nil
		}
	}
}

type xmlTransition struct {
	Speed    string
	Duration string
	Kind     string
}

func (t *xmlTransition) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "spd":
			t.Speed = a.Value
		case "dur":
			t.Duration = a.Value
		}
	}
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if t.Kind == "" && el.Name.Local != "sndAc" && el.Name.Local != "extLst" {
				t.Kind = el.Name.Local
			}
			if err := d.Skip(); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}
