package classifier

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/fertilizer-advisor/internal/config"
	"github.com/prn-tf/fertilizer-advisor/internal/domain"
	"github.com/prn-tf/fertilizer-advisor/internal/pkg/crypto"
)

func loadFixture(t *testing.T) *Classifier {
	t.Helper()

	c, err := Load(context.Background(), FileSource{Path: filepath.Join("testdata", "forest.json")}, LoadOptions{})
	require.NoError(t, err)
	return c
}

func TestBuildFeatures_ColumnOrder(t *testing.T) {
	got := BuildFeatures(domain.NutrientReading{N: 10, P: 5, K: 3})
	require.Equal(t, []float64{10, 3, 5}, got)
	require.Equal(t, []string{"Nitrogen", "Potassium", "Phosphorus"}, FeatureColumns)
}

func TestClassifier_Predict(t *testing.T) {
	c := loadFixture(t)

	tests := []struct {
		name    string
		reading domain.NutrientReading
		want    string
	}{
		{name: "low nitrogen", reading: domain.NutrientReading{N: 10, P: 40, K: 40}, want: "DAP"},
		{name: "threshold goes left", reading: domain.NutrientReading{N: 20.5, P: 0, K: 0}, want: "DAP"},
		{name: "high nitrogen low potassium", reading: domain.NutrientReading{N: 30, P: 10, K: 3}, want: "Urea"},
		{name: "high nitrogen high potassium", reading: domain.NutrientReading{N: 30, P: 3, K: 10}, want: "28-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Predict(tt.reading)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParse_ExportedLayout(t *testing.T) {
	// One stump split on feature 2 (Phosphorus); labels sorted the way the
	// label encoder stores them.
	data := []byte(`{
		"format": "random_forest/v1",
		"feature_names": ["Nitrogen", "Potassium", "Phosphorus"],
		"classes": [0, 1, 2],
		"label_classes": ["10-26-26", "DAP", "Urea"],
		"trees": [{
			"children_left":  [1, -1, -1],
			"children_right": [2, -1, -1],
			"feature":        [2, -2, -2],
			"threshold":      [15.5, -2.0, -2.0],
			"value":          [[0, 7, 6], [0, 0, 5], [0, 7, 1]]
		}]
	}`)

	c, err := Parse(data)
	require.NoError(t, err)

	got, err := c.Predict(domain.NutrientReading{N: 0, P: 10, K: 99})
	require.NoError(t, err)
	require.Equal(t, "Urea", got)

	got, err = c.Predict(domain.NutrientReading{N: 0, P: 20, K: 0})
	require.NoError(t, err)
	require.Equal(t, "DAP", got)
}

func TestForest_ProbabilitiesAverageNormalizedLeaves(t *testing.T) {
	c := loadFixture(t)
	forest := c.model.(*Forest)
	require.Equal(t, 2, forest.NumTrees())

	// Tree one lands on [0 0 6], tree two on [0 3 2].
	proba, err := forest.Probabilities([]float64{30, 10, 3})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{0, 0.3, 0.7}, proba, 1e-9)
}

func TestForest_TieGoesToFirstClass(t *testing.T) {
	leaf := func(weights ...float64) Tree {
		return Tree{
			ChildrenLeft:  []int{-1},
			ChildrenRight: []int{-1},
			Feature:       []int{-2},
			Threshold:     []float64{-2},
			Value:         [][]float64{weights},
		}
	}

	forest, err := NewForest([]Tree{leaf(0, 0, 4), leaf(0, 2, 0)}, []int{0, 1, 2}, 3)
	require.NoError(t, err)

	class, err := forest.Predict([]float64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 1, class)
}

func TestForest_FeatureCountMismatch(t *testing.T) {
	c := loadFixture(t)

	_, err := c.model.Predict([]float64{1, 2})
	require.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestArtifact_BuildRejectsInconsistentArtifacts(t *testing.T) {
	valid := func() Artifact {
		return Artifact{
			Format:       ArtifactFormat,
			FeatureNames: []string{"Nitrogen", "Potassium", "Phosphorus"},
			Classes:      []int{0, 1},
			LabelClasses: []string{"DAP", "Urea"},
			Trees: []Tree{{
				ChildrenLeft:  []int{1, -1, -1},
				ChildrenRight: []int{2, -1, -1},
				Feature:       []int{2, -2, -2},
				Threshold:     []float64{7, -2, -2},
				Value:         [][]float64{{1, 1}, {1, 0}, {0, 1}},
			}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Artifact)
	}{
		{name: "unknown format", mutate: func(a *Artifact) { a.Format = "svm/v1" }},
		{name: "swapped feature columns", mutate: func(a *Artifact) {
			a.FeatureNames = []string{"Nitrogen", "Phosphorus", "Potassium"}
		}},
		{name: "class without label", mutate: func(a *Artifact) { a.Classes = []int{0, 5} }},
		{name: "duplicate label", mutate: func(a *Artifact) { a.LabelClasses = []string{"DAP", "DAP"} }},
		{name: "no trees", mutate: func(a *Artifact) { a.Trees = nil }},
		{name: "ragged node arrays", mutate: func(a *Artifact) { a.Trees[0].Threshold = []float64{7} }},
		{name: "split on missing feature", mutate: func(a *Artifact) { a.Trees[0].Feature[0] = 3 }},
		{name: "child points backwards", mutate: func(a *Artifact) { a.Trees[0].ChildrenLeft[0] = 0 }},
		{name: "leaf with wrong class count", mutate: func(a *Artifact) { a.Trees[0].Value[1] = []float64{1} }},
	}

	a := valid()
	_, err := a.Build()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := valid()
			tt.mutate(&a)

			_, err := a.Build()
			require.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}
}

// stubModel returns a fixed class or error.
type stubModel struct {
	class int
	err   error
}

func (m stubModel) Predict([]float64) (int, error) { return m.class, m.err }

func TestClassifier_InferenceErrors(t *testing.T) {
	decoder, err := NewLabelDecoder([]string{"DAP", "Urea"})
	require.NoError(t, err)

	t.Run("decoder mismatch", func(t *testing.T) {
		c := New(stubModel{class: 7}, decoder)

		_, err := c.Predict(domain.NutrientReading{N: 1, P: 1, K: 1})
		var inferr *InferenceError
		require.ErrorAs(t, err, &inferr)
		require.Equal(t, "decode", inferr.Stage)
		require.ErrorIs(t, err, ErrDecoderMismatch)
	})

	t.Run("model failure", func(t *testing.T) {
		boom := errors.New("boom")
		c := New(stubModel{err: boom}, decoder)

		_, err := c.Predict(domain.NutrientReading{})
		var inferr *InferenceError
		require.ErrorAs(t, err, &inferr)
		require.Equal(t, "predict", inferr.Stage)
		require.ErrorIs(t, err, boom)
	})
}

func TestLoad_ChecksumAndParseErrors(t *testing.T) {
	path := filepath.Join("testdata", "forest.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Load(context.Background(), FileSource{Path: path}, LoadOptions{SHA256: crypto.SHA256Hex(data)})
	require.NoError(t, err)

	_, err = Load(context.Background(), FileSource{Path: path}, LoadOptions{SHA256: crypto.SHA256Hex([]byte("x"))})
	require.ErrorIs(t, err, ErrInvalidArtifact)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	_, err = Load(context.Background(), FileSource{Path: bad}, LoadOptions{})
	require.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = Load(context.Background(), FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}, LoadOptions{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

// fakeS3 serves a single object.
type fakeS3 struct {
	bucket, key string
	body        []byte
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if *in.Bucket != f.bucket || *in.Key != f.key {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(f.body))}, nil
}

func TestS3Source_Fetch(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "forest.json"))
	require.NoError(t, err)

	src := S3Source{
		Client: &fakeS3{bucket: "models", key: "fertilizer/forest.json", body: data},
		Bucket: "models",
		Key:    "fertilizer/forest.json",
	}
	require.Equal(t, "s3://models/fertilizer/forest.json", src.String())

	c, err := Load(context.Background(), src, LoadOptions{})
	require.NoError(t, err)

	got, err := c.Predict(domain.NutrientReading{N: 30, P: 10, K: 3})
	require.NoError(t, err)
	require.Equal(t, "Urea", got)

	_, err = Load(context.Background(), S3Source{Client: src.Client, Bucket: "models", Key: "other"}, LoadOptions{})
	require.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	bucket, key, err := ParseS3URI("s3://models/a/b.json")
	require.NoError(t, err)
	require.Equal(t, "models", bucket)
	require.Equal(t, "a/b.json", key)

	for _, uri := range []string{"s3://models", "s3:///key", "http://x/y"} {
		_, _, err := ParseS3URI(uri)
		require.ErrorIs(t, err, ErrUnsupportedSource, uri)
	}
}

func TestSourceFor(t *testing.T) {
	src, err := SourceFor(context.Background(), "models/forest.json", config.S3Config{})
	require.NoError(t, err)
	require.Equal(t, FileSource{Path: "models/forest.json"}, src)

	_, err = SourceFor(context.Background(), "gs://bucket/key", config.S3Config{})
	require.ErrorIs(t, err, ErrUnsupportedSource)

	_, err = SourceFor(context.Background(), "", config.S3Config{})
	require.ErrorIs(t, err, ErrUnsupportedSource)
}
