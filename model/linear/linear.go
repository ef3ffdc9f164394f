// Package linear implements model.Model as a linear policy/value/uncertainty
// network over environment feature vectors, trained with plain SGD. It is
// the baseline that lets the learner run end to end without an external
// inference runtime.
package linear

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/zerosum-labs/learner/env"
	"github.com/zerosum-labs/learner/model"
	"github.com/zerosum-labs/learner/target"
)

// logEps keeps cross-entropy finite when a probability underflows to zero.
const logEps = 1e-8

// Model is a linear model: one softmax policy head over the full action
// vocabulary plus scalar value and uncertainty heads, all reading the same
// feature vector.
type Model struct {
	game      env.Game
	lr        float64
	actionIdx map[string]int

	wPolicy *mat.Dense    // actions x features
	bPolicy *mat.VecDense // actions
	wValue  *mat.VecDense // features
	bValue  float64
	wUBE    *mat.VecDense // features
	bUBE    float64
}

// New creates a zero-initialized Model for the given game. The uncertainty
// bias starts at 1, matching the placeholder uncertainty of synthetic
// targets.
func New(game env.Game, learningRate float64) *Model {
	actions := game.Actions()
	idx := make(map[string]int, len(actions))
	for i, a := range actions {
		idx[a] = i
	}

	features := game.FeatureLen()
	return &Model{
		game:      game,
		lr:        learningRate,
		actionIdx: idx,
		wPolicy:   mat.NewDense(len(actions), features, nil),
		bPolicy:   mat.NewVecDense(len(actions), nil),
		wValue:    mat.NewVecDense(features, nil),
		wUBE:      mat.NewVecDense(features, nil),
		bUBE:      1,
	}
}

// Infer evaluates the given state descriptors and returns one prediction
// per state, with the policy over the full action vocabulary.
func (m *Model) Infer(states []string) ([]model.Prediction, error) {
	predictions := make([]model.Prediction, 0, len(states))
	for _, desc := range states {
		x, err := m.features(desc)
		if err != nil {
			return nil, err
		}
		policy, value, ube := m.forward(x)
		predictions = append(predictions, model.Prediction{
			Policy: policy,
			Value:  value,
			UBE:    ube,
		})
	}
	return predictions, nil
}

// TrainStep performs one SGD update on the batch and returns the mean
// policy cross-entropy plus value squared error.
func (m *Model) TrainStep(batch []target.Target) (float64, error) {
	if len(batch) == 0 {
		return 0, fmt.Errorf("linear: empty batch")
	}

	actions := m.wPolicy.RawMatrix().Rows
	features := m.game.FeatureLen()

	gradWPolicy := mat.NewDense(actions, features, nil)
	gradBPolicy := mat.NewVecDense(actions, nil)
	gradWValue := mat.NewVecDense(features, nil)
	gradWUBE := mat.NewVecDense(features, nil)
	var gradBValue, gradBUBE float64
	outer := mat.NewDense(actions, features, nil)

	var loss float64
	for _, t := range batch {
		x, err := m.features(t.State)
		if err != nil {
			return 0, err
		}
		policy, value, ube := m.forward(x)

		// Softmax + cross-entropy gradient on the logits: p - target.
		dLogits := mat.NewVecDense(actions, append([]float64(nil), policy...))
		for _, ap := range t.Policy {
			i, ok := m.actionIdx[ap.Action]
			if !ok {
				return 0, fmt.Errorf("linear: unknown action %q in target", ap.Action)
			}
			dLogits.SetVec(i, dLogits.AtVec(i)-ap.Prob)
			loss -= ap.Prob * math.Log(policy[i]+logEps)
		}
		outer.Outer(1, dLogits, x)
		gradWPolicy.Add(gradWPolicy, outer)
		gradBPolicy.AddVec(gradBPolicy, dLogits)

		dValue := value - t.Value
		loss += dValue * dValue
		gradWValue.AddScaledVec(gradWValue, dValue, x)
		gradBValue += dValue

		dUBE := ube - t.UBE
		gradWUBE.AddScaledVec(gradWUBE, dUBE, x)
		gradBUBE += dUBE
	}

	scale := m.lr / float64(len(batch))
	step := mat.NewDense(actions, features, nil)
	step.Scale(scale, gradWPolicy)
	m.wPolicy.Sub(m.wPolicy, step)
	m.bPolicy.AddScaledVec(m.bPolicy, -scale, gradBPolicy)
	m.wValue.AddScaledVec(m.wValue, -scale, gradWValue)
	m.bValue -= scale * gradBValue
	m.wUBE.AddScaledVec(m.wUBE, -scale, gradWUBE)
	m.bUBE -= scale * gradBUBE

	return loss / float64(len(batch)), nil
}

// ResetOptimizer is a no-op: plain SGD carries no accumulated state.
func (m *Model) ResetOptimizer() {}

// snapshot is the serialized parameter state.
type snapshot struct {
	Features int       `json:"features"`
	Actions  int       `json:"actions"`
	WPolicy  []float64 `json:"w_policy"`
	BPolicy  []float64 `json:"b_policy"`
	WValue   []float64 `json:"w_value"`
	BValue   float64   `json:"b_value"`
	WUBE     []float64 `json:"w_ube"`
	BUBE     float64   `json:"b_ube"`
}

// Snapshot serializes all parameters.
func (m *Model) Snapshot() ([]byte, error) {
	return json.Marshal(snapshot{
		Features: m.game.FeatureLen(),
		Actions:  m.wPolicy.RawMatrix().Rows,
		WPolicy:  append([]float64(nil), m.wPolicy.RawMatrix().Data...),
		BPolicy:  append([]float64(nil), m.bPolicy.RawVector().Data...),
		WValue:   append([]float64(nil), m.wValue.RawVector().Data...),
		BValue:   m.bValue,
		WUBE:     append([]float64(nil), m.wUBE.RawVector().Data...),
		BUBE:     m.bUBE,
	})
}

// Restore replaces all parameters from a Snapshot payload. The payload
// must match the model's action and feature dimensions.
func (m *Model) Restore(data []byte) error {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("linear: decode snapshot: %w", err)
	}

	actions := m.wPolicy.RawMatrix().Rows
	features := m.game.FeatureLen()
	if s.Actions != actions || s.Features != features {
		return fmt.Errorf("linear: snapshot shape %dx%d does not match model %dx%d",
			s.Actions, s.Features, actions, features)
	}
	if len(s.WPolicy) != actions*features || len(s.BPolicy) != actions ||
		len(s.WValue) != features || len(s.WUBE) != features {
		return fmt.Errorf("linear: snapshot parameter lengths are inconsistent")
	}

	m.wPolicy = mat.NewDense(actions, features, append([]float64(nil), s.WPolicy...))
	m.bPolicy = mat.NewVecDense(actions, append([]float64(nil), s.BPolicy...))
	m.wValue = mat.NewVecDense(features, append([]float64(nil), s.WValue...))
	m.bValue = s.BValue
	m.wUBE = mat.NewVecDense(features, append([]float64(nil), s.WUBE...))
	m.bUBE = s.BUBE
	return nil
}

func (m *Model) features(desc string) (*mat.VecDense, error) {
	state, err := m.game.Decode(desc)
	if err != nil {
		return nil, fmt.Errorf("linear: decode state: %w", err)
	}
	return mat.NewVecDense(m.game.FeatureLen(), state.Features()), nil
}

// forward computes the softmax policy, value, and uncertainty for one
// feature vector. The returned policy slice is freshly allocated.
func (m *Model) forward(x *mat.VecDense) ([]float64, float64, float64) {
	actions := m.wPolicy.RawMatrix().Rows
	logits := mat.NewVecDense(actions, nil)
	logits.MulVec(m.wPolicy, x)
	logits.AddVec(logits, m.bPolicy)

	policy := softmax(logits.RawVector().Data)
	value := mat.Dot(m.wValue, x) + m.bValue
	ube := mat.Dot(m.wUBE, x) + m.bUBE
	return policy, value, ube
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
