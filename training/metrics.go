package training

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/yonikl/cvnn/tensor"
)

// ConfusionMatrix accumulates classification results by true and
// predicted class.
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int // [true_class][predicted_class]
	TotalSamples int
}

// NewConfusionMatrix creates an empty matrix for the given class count.
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}
	return &ConfusionMatrix{
		NumClasses: numClasses,
		Matrix:     matrix,
	}
}

// Reset clears all accumulated counts.
func (cm *ConfusionMatrix) Reset() {
	for i := range cm.Matrix {
		for j := range cm.Matrix[i] {
			cm.Matrix[i][j] = 0
		}
	}
	cm.TotalSamples = 0
}

// Update accumulates one batch of predictions against one-hot labels.
// Rows are classified by argmax on both sides.
func (cm *ConfusionMatrix) Update(pred, target *tensor.Tensor) error {
	if pred.Cols() != cm.NumClasses {
		return errors.Errorf("predictions have %d classes, matrix has %d", pred.Cols(), cm.NumClasses)
	}
	p, err := tensor.ArgMaxRows(pred)
	if err != nil {
		return err
	}
	t, err := tensor.ArgMaxRows(target)
	if err != nil {
		return err
	}
	if len(p) != len(t) {
		return errors.Errorf("predictions have %d rows, labels have %d", len(p), len(t))
	}
	for i := range p {
		cm.Matrix[t[i]][p[i]]++
		cm.TotalSamples++
	}
	return nil
}

// Accuracy is the fraction of correctly classified samples.
func (cm *ConfusionMatrix) Accuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}
	return float64(correct) / float64(cm.TotalSamples)
}

// Precision for one class: correct predictions over all predictions of
// that class. Zero when the class was never predicted.
func (cm *ConfusionMatrix) Precision(class int) float64 {
	predicted := 0
	for i := 0; i < cm.NumClasses; i++ {
		predicted += cm.Matrix[i][class]
	}
	if predicted == 0 {
		return 0
	}
	return float64(cm.Matrix[class][class]) / float64(predicted)
}

// Recall for one class: correct predictions over all true members of
// that class. Zero when the class never occurred.
func (cm *ConfusionMatrix) Recall(class int) float64 {
	actual := 0
	for j := 0; j < cm.NumClasses; j++ {
		actual += cm.Matrix[class][j]
	}
	if actual == 0 {
		return 0
	}
	return float64(cm.Matrix[class][class]) / float64(actual)
}

// MacroF1 averages the per-class F1 scores.
func (cm *ConfusionMatrix) MacroF1() float64 {
	if cm.NumClasses == 0 {
		return 0
	}
	sum := 0.0
	for c := 0; c < cm.NumClasses; c++ {
		p, r := cm.Precision(c), cm.Recall(c)
		if p+r > 0 {
			sum += 2 * p * r / (p + r)
		}
	}
	return sum / float64(cm.NumClasses)
}

// String renders the matrix with true classes as rows.
func (cm *ConfusionMatrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "confusion matrix (%d samples)\n", cm.TotalSamples)
	for i, row := range cm.Matrix {
		fmt.Fprintf(&b, "true %d:", i)
		for _, v := range row {
			fmt.Fprintf(&b, " %6d", v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
