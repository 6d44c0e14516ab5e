package analysis

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"

	"github.com/brixfix/brixfix-go/internal/classifier"
	"github.com/brixfix/brixfix-go/internal/datastore"
	"github.com/brixfix/brixfix-go/internal/detection"
	"github.com/brixfix/brixfix-go/internal/errors"
	"github.com/brixfix/brixfix-go/internal/logger"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tif", ".tiff"}

// ImageClassifier is the part of the classifier used for file analysis.
type ImageClassifier interface {
	Available() error
	DecodeImage(r io.Reader) (image.Image, string, error)
	ClassifyImage(ctx context.Context, img image.Image) (detection.Result, error)
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path        string
	Result      detection.Result
	DetectionID uint // zero when the result was not recorded
	Err         error
}

// FileOptions controls ClassifyFiles.
type FileOptions struct {
	Email       string              // records results for this user when set
	Store       datastore.Interface // required when Email is set
	StoreImages bool
}

// CollectImages expands paths into image files. Directories are walked
// recursively and only files with an image extension are kept; explicit
// file arguments are always kept.
func CollectImages(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.New(err).
				Component(componentName).
				Category(errors.CategoryFileIO).
				Context("path", p).
				Build()
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path))) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.New(err).
				Component(componentName).
				Category(errors.CategoryFileIO).
				Context("path", p).
				Build()
		}
	}

	if len(out) == 0 {
		return nil, errors.New(ErrNoImages).
			Component(componentName).
			Category(errors.CategoryValidation).
			Build()
	}
	return out, nil
}

// ClassifyFiles classifies every file in order. A file that cannot be
// read or decoded is reported in its FileResult and does not stop the
// run; an unavailable model or a cancelled ctx does.
func ClassifyFiles(ctx context.Context, clf ImageClassifier, files []string, opts FileOptions) ([]FileResult, error) {
	if err := clf.Available(); err != nil {
		return nil, err
	}
	if opts.Email != "" && opts.Store == nil {
		return nil, errors.Newf("a datastore is required to record results").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	results := make([]FileResult, 0, len(files))
	for _, path := range files {
		if ctx.Err() != nil {
			return results, errors.New(ErrAnalysisCanceled).
				Component(componentName).
				Category(errors.CategoryCancellation).
				Context("processed", len(results)).
				Build()
		}

		res := classifyFile(ctx, clf, path, opts)
		if res.Err != nil {
			GetLogger().Warn("image not classified",
				logger.String("path", path),
				logger.Error(res.Err))
		}
		results = append(results, res)
	}
	return results, nil
}

func classifyFile(ctx context.Context, clf ImageClassifier, path string, opts FileOptions) FileResult {
	res := FileResult{Path: path}

	f, err := os.Open(path)
	if err != nil {
		res.Err = errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
		return res
	}
	defer f.Close()

	img, _, err := clf.DecodeImage(f)
	if err != nil {
		res.Err = err
		return res
	}

	res.Result, res.Err = clf.ClassifyImage(ctx, img)
	if res.Err != nil || opts.Email == "" {
		return res
	}

	in := datastore.NewDetection{
		Email:      opts.Email,
		Label:      res.Result.Label,
		Confidence: res.Result.Confidence,
	}
	if opts.StoreImages {
		if in.ImageData, res.Err = classifier.EncodePNG(img); res.Err != nil {
			return res
		}
	}

	rec, err := opts.Store.RecordDetection(ctx, in)
	if err != nil {
		res.Err = err
		return res
	}
	res.DetectionID = rec.ID
	return res
}

// WriteResults prints one row per file.
func WriteResults(w io.Writer, results []FileResult, locale language.Tag) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLABEL\tCONFIDENCE\tRECORD")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\terror: %v\t\t\n", r.Path, r.Err)
			continue
		}
		record := "-"
		if r.DetectionID != 0 {
			record = fmt.Sprintf("#%d", r.DetectionID)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f%%\t%s\n", r.Path, r.Result.Label.DisplayName(locale), r.Result.Confidence, record)
	}
	return tw.Flush()
}

// WriteStats prints a per-label table.
func WriteStats(w io.Writer, stats []datastore.LabelStats, locale language.Tag) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tCOUNT\tMEAN CONFIDENCE")
	var total int64
	for _, s := range stats {
		total += s.Count
		fmt.Fprintf(tw, "%s\t%d\t%.2f%%\n", s.Label.DisplayName(locale), s.Count, s.MeanConfidence)
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t\n", total)
	return tw.Flush()
}
