package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/estudioia/videos-api/internal/backoff"
	"github.com/estudioia/videos-api/internal/client"
	"github.com/estudioia/videos-api/internal/model"
	"github.com/estudioia/videos-api/internal/store"
)

// narration padding after the spoken text ends
const narrationTail = 500 * time.Millisecond

type stage struct {
	name       string
	start, end int
	run        func(ctx context.Context, r *jobRun, st stage) error
}

// pipeline is the ordered list of render stages and the share of overall
// progress each one covers. 100 is only ever written on completion.
var pipeline = []stage{
	{name: model.StagePrepareAssets, start: 0, end: 15, run: prepareAssets},
	{name: model.StageRenderSlides, start: 15, end: 55, run: renderSlides},
	{name: model.StageComposeTimeline, start: 55, end: 65, run: composeTimeline},
	{name: model.StageEncode, start: 65, end: 90, run: encode},
	{name: model.StageUpload, start: 90, end: 99, run: upload},
}

type narration struct {
	text      string
	audioFile string
	duration  time.Duration
	provider  string
}

type sceneProps struct {
	SlideNumber      int               `json:"slideNumber"`
	Title            string            `json:"title"`
	Elements         []model.Element   `json:"elements"`
	Background       *model.Background `json:"background,omitempty"`
	Transition       model.Transition  `json:"transition"`
	Narration        string            `json:"narration,omitempty"`
	AudioFile        string            `json:"audioFile,omitempty"`
	DurationSeconds  float64           `json:"durationSeconds"`
	StartFrame       int               `json:"startFrame"`
	DurationInFrames int               `json:"durationInFrames"`
}

type videoProps struct {
	Title            string           `json:"title"`
	Width            int              `json:"width"`
	Height           int              `json:"height"`
	FPS              int              `json:"fps"`
	DurationInFrames int              `json:"durationInFrames"`
	Scenes           []sceneProps     `json:"scenes"`
	Watermark        *model.Watermark `json:"watermark,omitempty"`
}

type artifacts struct {
	deck      *model.SlideModel
	narration []narration
	scenes    []sceneProps
	props     *videoProps
	output    string
	outputURL string
}

func (r *jobRun) execute(ctx context.Context) error {
	for _, st := range pipeline {
		if err := r.checkpoint(ctx); err != nil {
			return r.stopped(ctx, err)
		}
		r.clock.start()
		r.report(ctx, st.start, st.name)

		sctx, cancel := r.watch(ctx)
		err := st.run(sctx, r, st)
		cancel()
		if err != nil {
			return r.stageFailed(ctx, st, err)
		}

		took := r.clock.finish()
		r.completed = append(r.completed, st.name)
		r.report(ctx, st.end, st.name)
		r.log.WithField("stage", st.name).WithField("took", took.Round(time.Millisecond)).Debug("Stage completed")
	}
	return r.complete(ctx)
}

func (r *jobRun) stageFailed(ctx context.Context, st stage, err error) error {
	if errors.Is(err, errPauseTimeout) {
		return r.stopped(ctx, err)
	}
	if ctx.Err() != nil {
		return r.stopped(ctx, ctx.Err())
	}
	// a controller action may have caused or raced the failure; FAILED is
	// only reachable from PROCESSING
	if cerr := r.checkpoint(ctx); cerr != nil {
		return r.stopped(ctx, cerr)
	}
	return r.fail(ctx, st.name, err)
}

func (r *jobRun) complete(ctx context.Context) error {
	var job *model.Job
	for {
		if err := r.checkpoint(ctx); err != nil {
			return r.stopped(ctx, err)
		}
		var err error
		job, err = r.w.deps.Jobs.UpdateStatus(ctx, r.job.ID, model.JobStatusCompleted, store.StatusFields{OutputURL: r.art.outputURL})
		if err == nil {
			break
		}
		if !errors.Is(err, model.ErrInvalidTransition) {
			return fmt.Errorf("failed to complete job: %w", err)
		}
	}
	r.job = job

	r.log.WithField("output_url", job.OutputURL).Info("Render job completed")
	if r.w.deps.Hub != nil {
		r.w.deps.Hub.BroadcastComplete(job.ID, job.Result())
	}
	r.notify(ctx, job)
	return nil
}

// prepareAssets loads the slide model and synthesizes narration per slide.
func prepareAssets(ctx context.Context, r *jobRun, st stage) error {
	if r.w.deps.Presentations == nil {
		return errors.New("presentation store not configured")
	}
	pres, err := r.w.deps.Presentations.GetPresentation(ctx, r.entry.PresentationID)
	if err != nil {
		return fmt.Errorf("failed to load presentation: %w", err)
	}
	if len(pres.Model.Slides) == 0 {
		return errors.New("presentation has no slides")
	}
	r.art.deck = &pres.Model

	audioDir := filepath.Join(r.dir, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return fmt.Errorf("failed to create audio dir: %w", err)
	}

	slides := pres.Model.Slides
	out := make([]narration, len(slides))
	opts := client.SpeechOptions{Language: r.entry.Settings.Language}
	voice := r.entry.Settings.VoiceID

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.w.opts.TTSParallelism)
	for i := range slides {
		i := i
		// checkpoints run here, between launches, on the task goroutine
		if err := r.checkpoint(ctx); err != nil {
			g.Wait()
			return err
		}
		if gctx.Err() != nil {
			break
		}
		r.report(ctx, st.within(float64(i)/float64(len(slides))), st.name)

		text := narrationText(slides[i])
		out[i].text = text
		if text == "" {
			continue
		}
		g.Go(func() error {
			cctx, cancel := call(gctx, r.w.opts.StageTimeout)
			defer cancel()
			speech, err := r.w.deps.TTS.Synthesize(cctx, text, voice, opts)
			if err != nil {
				return fmt.Errorf("slide %d narration: %w", slides[i].Number, err)
			}
			out[i].duration = speech.Duration
			out[i].provider = speech.Provider
			if len(speech.Audio) == 0 {
				return nil
			}
			name := filepath.Join(audioDir, fmt.Sprintf("slide-%03d%s", slides[i].Number, audioExt(speech.ContentType)))
			if err := os.WriteFile(name, speech.Audio, 0o644); err != nil {
				return fmt.Errorf("slide %d narration: %w", slides[i].Number, err)
			}
			out[i].audioFile = name
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	r.art.narration = out
	return nil
}

// renderSlides builds and writes the props of every scene.
func renderSlides(ctx context.Context, r *jobRun, st stage) error {
	sceneDir := filepath.Join(r.dir, "scenes")
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scene dir: %w", err)
	}

	slides := r.art.deck.Slides
	scenes := make([]sceneProps, 0, len(slides))
	for i, slide := range slides {
		if err := r.checkpoint(ctx); err != nil {
			return err
		}

		n := r.art.narration[i]
		seconds := float64(slide.Duration)
		if n.duration > 0 {
			seconds = (n.duration + narrationTail).Seconds()
		}
		scene := sceneProps{
			SlideNumber:     slide.Number,
			Title:           slide.Title,
			Elements:        slide.Elements,
			Background:      slide.Background,
			Transition:      slide.Transition,
			Narration:       n.text,
			AudioFile:       n.audioFile,
			DurationSeconds: seconds,
		}
		if err := writeJSON(filepath.Join(sceneDir, fmt.Sprintf("slide-%03d.json", slide.Number)), scene); err != nil {
			return fmt.Errorf("slide %d: %w", slide.Number, err)
		}
		scenes = append(scenes, scene)
		r.report(ctx, st.within(float64(i+1)/float64(len(slides))), st.name)
	}
	r.art.scenes = scenes
	return nil
}

// composeTimeline lays the scenes out in frames.
func composeTimeline(ctx context.Context, r *jobRun, st stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	settings := r.entry.Settings
	width, height := settings.Resolution.Dimensions()
	fps := settings.FPS
	if fps <= 0 {
		fps = 30
	}

	props := &videoProps{
		Title:     r.art.deck.Metadata.Title,
		Width:     width,
		Height:    height,
		FPS:       fps,
		Watermark: settings.Watermark,
		Scenes:    make([]sceneProps, len(r.art.scenes)),
	}
	frame := 0
	for i, s := range r.art.scenes {
		s.StartFrame = frame
		s.DurationInFrames = int(math.Ceil(s.DurationSeconds * float64(fps)))
		if s.DurationInFrames < 1 {
			s.DurationInFrames = 1
		}
		frame += s.DurationInFrames
		props.Scenes[i] = s
	}
	props.DurationInFrames = frame
	if frame == 0 {
		return errors.New("timeline is empty")
	}

	if err := writeJSON(filepath.Join(r.dir, "timeline.json"), props); err != nil {
		return err
	}
	r.art.props = props
	return nil
}

// encode renders the composition into the output file.
func encode(ctx context.Context, r *jobRun, st stage) error {
	renderer := r.w.deps.Renderer

	cctx, cancel := call(ctx, r.w.opts.StageTimeout)
	bundle, err := renderer.Bundle(cctx)
	cancel()
	if err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	if err := r.checkpoint(ctx); err != nil {
		return err
	}

	cctx, cancel = call(ctx, r.w.opts.StageTimeout)
	comp, err := renderer.SelectComposition(cctx, bundle, r.w.opts.CompositionID, r.art.props)
	cancel()
	if err != nil {
		return fmt.Errorf("select composition: %w", err)
	}
	if err := r.checkpoint(ctx); err != nil {
		return err
	}

	settings := r.entry.Settings
	r.art.output = filepath.Join(r.dir, "output."+string(settings.Format))
	req := &client.RenderRequest{
		Composition: comp,
		Props:       r.art.props,
		Codec:       string(settings.Codec),
		CRF:         settings.Quality.CRF(),
		Bitrate:     settings.Bitrate,
		Format:      string(settings.Format),
		OutputPath:  r.art.output,
	}

	rctx, cancel := call(ctx, r.w.opts.RenderTimeout)
	defer cancel()
	err = renderer.RenderMedia(rctx, req, func(p float64) {
		r.report(ctx, st.within(p), st.name)
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// upload stores the rendered file, retrying transient storage errors.
func upload(ctx context.Context, r *jobRun, st stage) error {
	format := r.entry.Settings.Format
	key := fmt.Sprintf("renders/%s/%s/%s.%s", r.entry.OwnerID, r.entry.ProjectID, r.job.ID, format)

	if r.w.deps.Storage == nil {
		r.art.outputURL = fmt.Sprintf("/videos/%s.%s", r.job.ID, format)
		r.log.WithField("url", r.art.outputURL).Info("Storage not configured, using local output URL")
		return nil
	}

	data, err := os.ReadFile(r.art.output)
	if err != nil {
		return fmt.Errorf("failed to read rendered file: %w", err)
	}

	policy := backoff.Policy{
		Attempts:  r.w.opts.UploadAttempts,
		BaseDelay: r.w.opts.UploadBaseDelay,
		MaxDelay:  8 * r.w.opts.UploadBaseDelay,
	}
	attempts, err := backoff.Retry(ctx, policy, func(ctx context.Context) error {
		cctx, cancel := call(ctx, r.w.opts.StageTimeout)
		defer cancel()
		url, err := r.w.deps.Storage.Save(cctx, key, data, format.ContentType())
		if err != nil {
			r.log.WithError(err).WithField("key", key).Warn("Upload attempt failed")
			return err
		}
		r.art.outputURL = url
		return nil
	}, func(error) bool { return ctx.Err() == nil })
	if err != nil {
		return fmt.Errorf("upload failed after %d attempts: %w", attempts, err)
	}
	return nil
}

// narrationText is what gets spoken for a slide: speaker notes when present,
// otherwise the visible text.
func narrationText(s model.Slide) string {
	if notes := strings.TrimSpace(s.Notes); notes != "" {
		return notes
	}
	var parts []string
	for _, el := range s.Elements {
		if el.Type != model.ElementText {
			continue
		}
		if t := strings.TrimSpace(strings.ReplaceAll(el.Content, "\n", ". ")); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, ". ")
}

func audioExt(contentType string) string {
	switch contentType {
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".mp3"
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
