//go:build onnx
// +build onnx

package phi

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"sync"
	"unicode"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Label order expected from the token classification head. BIO tags beyond
// O map pairwise onto entity types.
var nerLabels = []string{
	"O",
	"B-PERSON", "I-PERSON",
	"B-LOCATION", "I-LOCATION",
	"B-ORGANIZATION", "I-ORGANIZATION",
	"B-DATE_TIME", "I-DATE_TIME",
	"B-FACILITY_NAME", "I-FACILITY_NAME",
}

const nerVocabSize = 30522

// OnnxNERBackend implements NERBackend using ONNX Runtime
// (via yalue/onnxruntime_go).
type OnnxNERBackend struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	logger     *zap.Logger
	ready      bool
	mu         sync.RWMutex
}

// NewNERBackend initializes the ONNX Runtime backend. Requires build tag 'onnx'.
func NewNERBackend(logger *zap.Logger, modelPath string) NERBackend {
	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		logger.Error("ONNX Runtime environment init failed", zap.Error(err))
		return nil
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		logger.Error("Failed to inspect ONNX model IO", zap.Error(err), zap.String("model", modelPath))
		return nil
	}
	if len(outputsInfo) == 0 {
		logger.Error("ONNX model reports no outputs", zap.String("model", modelPath))
		return nil
	}

	var inputNames []string
	for _, preferred := range []string{"input_ids", "attention_mask"} {
		for _, ii := range inputsInfo {
			if strings.ToLower(ii.Name) == preferred {
				inputNames = append(inputNames, ii.Name)
			}
		}
	}
	if len(inputNames) == 0 {
		for _, ii := range inputsInfo {
			inputNames = append(inputNames, ii.Name)
		}
	}
	outputName := outputsInfo[0].Name

	sess, err := ort.NewDynamicAdvancedSession(modelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		logger.Error("ONNX Runtime session creation failed", zap.Error(err), zap.String("model", modelPath))
		return nil
	}

	logger.Info("ONNX NER backend ready",
		zap.String("model", modelPath),
		zap.Strings("inputs", inputNames),
		zap.String("output", outputName))
	return &OnnxNERBackend{session: sess, inputNames: inputNames, outputName: outputName, logger: logger, ready: true}
}

// IsReady reports whether the backend is initialized.
func (b *OnnxNERBackend) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready && b.session != nil
}

// Close releases session and environment resources.
func (b *OnnxNERBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	ort.DestroyEnvironment()
	b.ready = false
	return nil
}

type nerToken struct {
	start int
	end   int
}

// DetectEntities tokenizes text on whitespace, runs token classification,
// and merges BIO tags into entity spans with byte offsets.
func (b *OnnxNERBackend) DetectEntities(ctx context.Context, text string) ([]EntitySpan, error) {
	if !b.IsReady() {
		return nil, fmt.Errorf("onnx backend not ready")
	}

	tokens := splitTokens(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	inputIDs := make([]int64, len(tokens))
	attention := make([]int64, len(tokens))
	for i, tok := range tokens {
		inputIDs[i] = tokenID(text[tok.start:tok.end])
		attention[i] = 1
	}

	shape := ort.NewShape(1, int64(len(tokens)))
	idsTensor, err := ort.NewTensor[int64](shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor[int64](shape, attention)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := make([]ort.Value, 0, len(b.inputNames))
	for _, rawName := range b.inputNames {
		if strings.Contains(strings.ToLower(rawName), "mask") {
			inputs = append(inputs, maskTensor)
		} else {
			inputs = append(inputs, idsTensor)
		}
	}

	outputs := make([]ort.Value, 1)
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}
	data := outTensor.GetData()
	outShape := outTensor.GetShape()
	if len(outShape) != 3 || int(outShape[1]) != len(tokens) {
		return nil, fmt.Errorf("unsupported output shape %v", outShape)
	}
	numLabels := int(outShape[2])

	tags := make([]string, len(tokens))
	for i := range tokens {
		best, bestScore := 0, float32(-1<<30)
		for l := 0; l < numLabels && l < len(nerLabels); l++ {
			if score := data[i*numLabels+l]; score > bestScore {
				best, bestScore = l, score
			}
		}
		tags[i] = nerLabels[best]
	}

	return mergeBIOSpans(tokens, tags), nil
}

// splitTokens returns whitespace-delimited word boundaries as byte offsets.
func splitTokens(text string) []nerToken {
	var tokens []nerToken
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, nerToken{start: start, end: i})
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, nerToken{start: start, end: len(text)})
	}
	return tokens
}

func tokenID(word string) int64 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(word)))
	return int64(h.Sum32() % nerVocabSize)
}

// mergeBIOSpans joins a B- tag and its following I- tags into one span.
func mergeBIOSpans(tokens []nerToken, tags []string) []EntitySpan {
	var spans []EntitySpan
	for i := 0; i < len(tags); i++ {
		entityType, ok := strings.CutPrefix(tags[i], "B-")
		if !ok {
			continue
		}
		end := tokens[i].end
		j := i + 1
		for j < len(tags) && tags[j] == "I-"+entityType {
			end = tokens[j].end
			j++
		}
		spans = append(spans, EntitySpan{
			Start:      tokens[i].start,
			End:        end,
			EntityType: entityType,
			Score:      0.85,
		})
		i = j - 1
	}
	return spans
}
