// Package ingest turns an uploaded PPTX package into the slide model the
// render pipeline consumes.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/estudioia/videos-api/internal/model"
)

const (
	emuPerPixel = 9525

	minSlideSeconds    = 15
	secondsPerElement  = 3
	maxPartBytes       = 32 << 20
	maxSlides          = 500
	defaultTransition  = "fade"
	defaultTransitionS = 1.0
	defaultSlideWidth  = 1920
	defaultSlideHeight = 1080
	untitled           = "Untitled presentation"

	relTypeNotes = "/notesSlide"
)

// ErrInvalidPackage is returned for files that are not a readable PPTX.
var ErrInvalidPackage = errors.New("invalid presentation package")

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// Parser reads PPTX packages.
type Parser struct {
	log logrus.FieldLogger
}

func NewParser(log logrus.FieldLogger) *Parser {
	return &Parser{log: log.WithField("component", "ingest")}
}

// Parse reads a PPTX package held in memory.
func (p *Parser) Parse(data []byte) (*model.SlideModel, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	pkg := &pptxPackage{files: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		pkg.files[f.Name] = f
	}
	if _, ok := pkg.files["ppt/presentation.xml"]; !ok {
		return nil, fmt.Errorf("%w: ppt/presentation.xml missing", ErrInvalidPackage)
	}

	meta := p.metadata(pkg)

	slideParts, err := pkg.slideOrder()
	if err != nil {
		return nil, err
	}
	if len(slideParts) == 0 {
		return nil, fmt.Errorf("%w: presentation has no slides", ErrInvalidPackage)
	}
	if len(slideParts) > maxSlides {
		return nil, fmt.Errorf("%w: %d slides exceeds the limit of %d", ErrInvalidPackage, len(slideParts), maxSlides)
	}

	slides := make([]model.Slide, 0, len(slideParts))
	for i, part := range slideParts {
		number := i + 1
		slide, err := pkg.parseSlide(part, number)
		if err != nil {
			p.log.WithError(err).WithField("slide", number).Warn("unreadable slide, using placeholder")
			slide = placeholderSlide(number)
		}
		slides = append(slides, slide)
	}
	meta.SlideCount = len(slides)

	out := &model.SlideModel{
		Slides:   slides,
		Assets:   pkg.assets(),
		Metadata: meta,
	}
	out.Timeline = buildTimeline(slides)
	return out, nil
}

type pptxPackage struct {
	files map[string]*zip.File
}

func (pkg *pptxPackage) read(name string) ([]byte, error) {
	f, ok := pkg.files[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	if f.UncompressedSize64 > maxPartBytes {
		return nil, fmt.Errorf("part %s is too large", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxPartBytes+1))
}

func (pkg *pptxPackage) decode(name string, v any) error {
	data, err := pkg.read(name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// rels maps relationship ids of a part to their resolved targets.
func (pkg *pptxPackage) rels(part string) map[string]xmlRelationship {
	dir, file := path.Split(part)
	var rels xmlRelationships
	if err := pkg.decode(dir+"_rels/"+file+".rels", &rels); err != nil {
		return nil
	}
	out := make(map[string]xmlRelationship, len(rels.Items))
	for _, r := range rels.Items {
		if r.Mode != "External" {
			r.Target = resolveTarget(dir, r.Target)
		}
		out[r.ID] = r
	}
	return out
}

func resolveTarget(dir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(dir, target))
}

// slideOrder follows presentation.xml, falling back to part numbering.
func (pkg *pptxPackage) slideOrder() ([]string, error) {
	var pres xmlPresentation
	if err := pkg.decode("ppt/presentation.xml", &pres); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	rels := pkg.rels("ppt/presentation.xml")
	var ordered []string
	for _, id := range pres.SlideIDs {
		r, ok := rels[id.RID]
		if !ok {
			continue
		}
		if _, exists := pkg.files[r.Target]; exists {
			ordered = append(ordered, r.Target)
		}
	}
	if len(ordered) > 0 {
		return ordered, nil
	}

	type numbered struct {
		n    int
		name string
	}
	var found []numbered
	for name := range pkg.files {
		if m := slidePartRe.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			found = append(found, numbered{n, name})
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })
	for _, f := range found {
		ordered = append(ordered, f.name)
	}
	return ordered, nil
}

func (p *Parser) metadata(pkg *pptxPackage) model.Metadata {
	meta := model.Metadata{
		Title:  untitled,
		Width:  defaultSlideWidth,
		Height: defaultSlideHeight,
	}

	var core xmlCoreProps
	if err := pkg.decode("docProps/core.xml", &core); err == nil {
		if t := strings.TrimSpace(core.Title); t != "" {
			meta.Title = t
		}
		meta.Author = strings.TrimSpace(core.Creator)
		meta.Subject = strings.TrimSpace(core.Subject)
		meta.CreatedAt = parseW3CDate(core.Created)
		meta.ModifiedAt = parseW3CDate(core.Modified)
	}

	var app xmlAppProps
	if err := pkg.decode("docProps/app.xml", &app); err == nil {
		meta.Application = strings.TrimSpace(app.Application)
	}

	var pres xmlPresentation
	if err := pkg.decode("ppt/presentation.xml", &pres); err == nil && pres.SlideSize != nil {
		if pres.SlideSize.Cx > 0 && pres.SlideSize.Cy > 0 {
			meta.Width = emuToPx(pres.SlideSize.Cx)
			meta.Height = emuToPx(pres.SlideSize.Cy)
		}
	}
	return meta
}

func parseW3CDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

func (pkg *pptxPackage) parseSlide(part string, number int) (model.Slide, error) {
	var doc xmlSlide
	if err := pkg.decode(part, &doc); err != nil {
		return model.Slide{}, err
	}
	rels := pkg.rels(part)

	b := &slideBuilder{number: number, rels: rels}
	b.walk(&doc.CSld.SpTree)

	slide := model.Slide{
		Number:     number,
		Title:      b.title(),
		Elements:   b.elements,
		Background: background(doc.CSld.Bg, rels),
		Transition: transition(doc.transition()),
		Notes:      pkg.notes(rels),
	}
	if slide.Elements == nil {
		slide.Elements = []model.Element{}
	}
	slide.Layout = layoutFor(len(slide.Elements))
	slide.Duration = max(minSlideSeconds, len(slide.Elements)*secondsPerElement)
	return slide, nil
}

type slideBuilder struct {
	number    int
	rels      map[string]xmlRelationship
	elements  []model.Element
	titleText string
	firstText string
	counts    map[model.ElementType]int
}

func (b *slideBuilder) add(typ model.ElementType, content string, xfrm *xmlXfrm) {
	if b.counts == nil {
		b.counts = make(map[model.ElementType]int)
	}
	idx := b.counts[typ]
	b.counts[typ]++
	b.elements = append(b.elements, model.Element{
		ID:       fmt.Sprintf("slide-%d-%s-%d", b.number, typ, idx),
		Type:     typ,
		Content:  content,
		Position: position(xfrm),
	})
}

// walk flattens group shapes; child offsets stay in group space.
func (b *slideBuilder) walk(tree *xmlSpTree) {
	for _, node := range tree.nodes {
		switch {
		case node.shape != nil:
			b.shape(node.shape)
		case node.pic != nil:
			b.picture(node.pic)
		case node.frame != nil:
			b.frame(node.frame)
		case node.group != nil:
			b.walk(node.group)
		}
	}
}

func (b *slideBuilder) shape(sp *xmlShape) {
	text := sp.TxBody.text()
	if ph := sp.NvSpPr.NvPr.Ph; ph != nil && (ph.Type == "title" || ph.Type == "ctrTitle") && text != "" && b.titleText == "" {
		b.titleText = text
	}
	if text != "" {
		if b.firstText == "" {
			b.firstText = text
		}
		b.add(model.ElementText, text, sp.SpPr.Xfrm)
		return
	}
	if sp.SpPr.PrstGeom != nil {
		b.add(model.ElementShape, sp.SpPr.PrstGeom.Prst, sp.SpPr.Xfrm)
	}
}

func (b *slideBuilder) picture(pic *xmlPic) {
	nv := pic.NvPicPr.NvPr
	if nv.Video != nil {
		b.add(model.ElementVideo, b.target(nv.Video.Link), pic.SpPr.Xfrm)
		return
	}
	ref := pic.BlipFill.Blip.Embed
	if ref == "" {
		ref = pic.BlipFill.Blip.Link
	}
	b.add(model.ElementImage, b.target(ref), pic.SpPr.Xfrm)
}

func (b *slideBuilder) frame(gf *xmlGraphicFrame) {
	uri := gf.GraphicData.URI
	switch {
	case strings.HasSuffix(uri, "/table"):
		b.add(model.ElementTable, "", gf.Xfrm)
	case strings.HasSuffix(uri, "/chart"):
		b.add(model.ElementChart, "", gf.Xfrm)
	}
}

func (b *slideBuilder) target(rid string) string {
	if r, ok := b.rels[rid]; ok {
		return r.Target
	}
	return ""
}

func (b *slideBuilder) title() string {
	if b.titleText != "" {
		return firstLine(b.titleText)
	}
	if b.firstText != "" {
		return firstLine(b.firstText)
	}
	return fmt.Sprintf("Slide %d", b.number)
}

func (tb *xmlTxBody) text() string {
	if tb == nil {
		return ""
	}
	var lines []string
	for _, p := range tb.Paragraphs {
		var sb strings.Builder
		for _, r := range p.Runs {
			sb.WriteString(r.T)
		}
		if line := strings.TrimSpace(sb.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// notes returns the body placeholder text of the slide's notes page.
func (pkg *pptxPackage) notes(rels map[string]xmlRelationship) string {
	for _, r := range rels {
		if !strings.HasSuffix(r.Type, relTypeNotes) {
			continue
		}
		var doc xmlSlide
		if err := pkg.decode(r.Target, &doc); err != nil {
			return ""
		}
		var parts []string
		collectNotes(&doc.CSld.SpTree, &parts)
		return strings.Join(parts, "\n")
	}
	return ""
}

func collectNotes(tree *xmlSpTree, out *[]string) {
	for _, node := range tree.nodes {
		if node.group != nil {
			collectNotes(node.group, out)
			continue
		}
		if node.shape == nil {
			continue
		}
		ph := node.shape.NvSpPr.NvPr.Ph
		if ph == nil || ph.Type != "body" {
			continue
		}
		if text := node.shape.TxBody.text(); text != "" {
			*out = append(*out, text)
		}
	}
}

func background(bg *xmlBg, rels map[string]xmlRelationship) *model.Background {
	if bg == nil {
		return nil
	}
	if bg.Pr != nil {
		switch {
		case bg.Pr.Solid != nil && bg.Pr.Solid.Color != nil:
			return &model.Background{Type: "color", Value: "#" + strings.ToUpper(bg.Pr.Solid.Color.Val)}
		case bg.Pr.Blip != nil:
			if r, ok := rels[bg.Pr.Blip.Blip.Embed]; ok {
				return &model.Background{Type: "image", Value: r.Target}
			}
		case bg.Pr.Grad != nil:
			var stops []string
			for _, gs := range bg.Pr.Grad.Stops {
				if gs.Color != nil {
					stops = append(stops, "#"+strings.ToUpper(gs.Color.Val))
				}
			}
			return &model.Background{Type: "gradient", Value: strings.Join(stops, ",")}
		}
	}
	if bg.Ref != nil && bg.Ref.Color != nil {
		return &model.Background{Type: "color", Value: "#" + strings.ToUpper(bg.Ref.Color.Val)}
	}
	return nil
}

func transition(t *xmlTransition) model.Transition {
	out := model.Transition{Type: defaultTransition, Duration: defaultTransitionS}
	if t == nil {
		return out
	}
	if t.Kind != "" {
		out.Type = t.Kind
	}
	if ms, err := strconv.Atoi(t.Duration); err == nil && ms > 0 {
		out.Duration = float64(ms) / 1000
		return out
	}
	switch t.Speed {
	case "fast":
		out.Duration = 0.5
	case "med":
		out.Duration = 0.75
	}
	return out
}

func position(x *xmlXfrm) model.Position {
	if x == nil {
		return model.Position{}
	}
	return model.Position{
		X:      emuToPx(x.Off.X),
		Y:      emuToPx(x.Off.Y),
		Width:  emuToPx(x.Ext.Cx),
		Height: emuToPx(x.Ext.Cy),
	}
}

func emuToPx(emu int64) int {
	return int((emu + emuPerPixel/2) / emuPerPixel)
}

func layoutFor(elements int) string {
	switch {
	case elements > 5:
		return "content"
	case elements > 2:
		return "title-content"
	default:
		return "title"
	}
}

func placeholderSlide(number int) model.Slide {
	return model.Slide{
		Number:     number,
		Title:      fmt.Sprintf("Slide %d", number),
		Layout:     "blank",
		Elements:   []model.Element{},
		Duration:   minSlideSeconds,
		Transition: model.Transition{Type: defaultTransition, Duration: defaultTransitionS},
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var mediaTypes = map[string]struct {
	kind        string
	contentType string
}{
	".png":  {"image", "image/png"},
	".jpg":  {"image", "image/jpeg"},
	".jpeg": {"image", "image/jpeg"},
	".gif":  {"image", "image/gif"},
	".bmp":  {"image", "image/bmp"},
	".svg":  {"image", "image/svg+xml"},
	".tif":  {"image", "image/tiff"},
	".tiff": {"image", "image/tiff"},
	".emf":  {"image", "image/emf"},
	".wmf":  {"image", "image/wmf"},
	".mp4":  {"video", "video/mp4"},
	".m4v":  {"video", "video/mp4"},
	".mov":  {"video", "video/quicktime"},
	".avi":  {"video", "video/x-msvideo"},
	".wmv":  {"video", "video/x-ms-wmv"},
	".webm": {"video", "video/webm"},
	".mp3":  {"audio", "audio/mpeg"},
	".wav":  {"audio", "audio/wav"},
	".m4a":  {"audio", "audio/mp4"},
	".wma":  {"audio", "audio/x-ms-wma"},
	".ogg":  {"audio", "audio/ogg"},
}

func (pkg *pptxPackage) assets() model.Assets {
	out := model.Assets{Images: []model.Asset{}, Videos: []model.Asset{}, Audio: []model.Asset{}}
	names := make([]string, 0)
	for name := range pkg.files {
		if strings.HasPrefix(name, "ppt/media/") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		mt, ok := mediaTypes[strings.ToLower(path.Ext(name))]
		if !ok {
			continue
		}
		asset := model.Asset{Path: name, ContentType: mt.contentType, Size: int64(pkg.files[name].UncompressedSize64)}
		switch mt.kind {
		case "image":
			out.Images = append(out.Images, asset)
		case "video":
			out.Videos = append(out.Videos, asset)
		case "audio":
			out.Audio = append(out.Audio, asset)
		}
	}
	return out
}

func buildTimeline(slides []model.Slide) model.Timeline {
	tl := model.Timeline{Scenes: make([]model.Scene, 0, len(slides))}
	for _, s := range slides {
		tl.Scenes = append(tl.Scenes, model.Scene{
			SlideNumber: s.Number,
			Start:       tl.TotalDuration,
			Duration:    s.Duration,
			Transition:  s.Transition,
		})
		tl.TotalDuration += s.Duration
	}
	return tl
}
