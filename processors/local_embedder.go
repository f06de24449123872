package processors

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	tokenizer "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"doubtDesk/core"
)

// LocalEmbedder runs a sentence-transformer ONNX export in-process, for
// deployments that cannot send transcript text to an external API. Expects
// model.onnx and tokenizer.json in the model directory (EMBEDDING_MODEL_DIR,
// default ".").
type LocalEmbedder struct {
	tok     *tokenizer.Tokenizer
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex // ONNX sessions are not safe for concurrent Run
}

func NewLocalEmbedder() (*LocalEmbedder, error) {
	dir := os.Getenv("EMBEDDING_MODEL_DIR")
	if dir == "" {
		dir = "."
	}

	tok, err := pretrained.FromFile(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	if lib := os.Getenv("ONNXRUNTIME_LIB"); lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()
	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("set graph optimization: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		filepath.Join(dir, "model.onnx"),
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &LocalEmbedder{tok: tok, session: session}, nil
}

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	enc, err := e.tok.EncodeSingle(text)
	if err != nil {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("tokenize: %w", err)}
	}

	ids := enc.GetIds()
	mask := enc.GetAttentionMask()
	seqLen := len(ids)
	if seqLen == 0 {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("empty tokenization")}
	}

	inputIds := make([]int64, seqLen)
	attentionMask := make([]int64, seqLen)
	tokenTypeIds := make([]int64, seqLen)
	for i := 0; i < seqLen; i++ {
		inputIds[i] = int64(ids[i])
		attentionMask[i] = int64(mask[i])
	}

	shape := ort.NewShape(1, int64(seqLen))
	inputIdsTensor, err := ort.NewTensor(shape, inputIds)
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	defer inputIdsTensor.Destroy()
	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	defer attentionMaskTensor.Destroy()
	tokenTypeIdsTensor, err := ort.NewTensor(shape, tokenTypeIds)
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	defer tokenTypeIdsTensor.Destroy()

	outputs := make([]ort.Value, 1)
	e.mu.Lock()
	err = e.session.Run(
		[]ort.Value{inputIdsTensor, attentionMaskTensor, tokenTypeIdsTensor},
		outputs,
	)
	e.mu.Unlock()
	if err != nil {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("inference: %w", err)}
	}
	defer outputs[0].Destroy()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("output tensor is not float32")}
	}

	// Output: [1, sequence_length, hidden_dim]. Mean-pool over the attended
	// tokens, then L2-normalize so cosine search reduces to a dot product.
	outShape := outputTensor.GetShape()
	hiddenDim := int(outShape[2])
	data := outputTensor.GetData()

	vec := make([]float32, hiddenDim)
	attended := 0
	for i := 0; i < seqLen; i++ {
		if attentionMask[i] == 0 {
			continue
		}
		attended++
		for j := 0; j < hiddenDim; j++ {
			vec[j] += data[i*hiddenDim+j]
		}
	}
	if attended == 0 {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("no attended tokens")}
	}

	var sum float64
	for j := range vec {
		vec[j] /= float32(attended)
		sum += float64(vec[j]) * float64(vec[j])
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for j := range vec {
			vec[j] /= norm
		}
	}
	return vec, nil
}

func (e *LocalEmbedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
}
