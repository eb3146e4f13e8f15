package data

import (
	"fmt"
	"os"
	"path/filepath"
)

// CIFAR binary layout: each record is one label section followed by 3072
// pixel bytes (three 32x32 channel planes, R then G then B). CIFAR-10 files
// carry a single label byte per record; CIFAR-100 carries a coarse byte and
// a fine byte, of which the fine label is used.
const (
	cifarSize       = 32
	cifarChannels   = 3
	cifarPixelBytes = cifarChannels * cifarSize * cifarSize
)

// Channel statistics of the training splits, used to standardize pixels.
var (
	cifar10Mean  = [3]float32{0.4914, 0.4822, 0.4465}
	cifar10Std   = [3]float32{0.2470, 0.2435, 0.2616}
	cifar100Mean = [3]float32{0.5071, 0.4865, 0.4409}
	cifar100Std  = [3]float32{0.2673, 0.2564, 0.2762}
)

// LoadCIFAR10 reads the CIFAR-10 binary distribution from dir
// (data_batch_1.bin..data_batch_5.bin for the train split, test_batch.bin
// otherwise) and returns a normalized dataset.
func LoadCIFAR10(dir string, train bool) (*Dataset, error) {
	var files []string
	if train {
		for i := 1; i <= 5; i++ {
			files = append(files, filepath.Join(dir, fmt.Sprintf("data_batch_%d.bin", i)))
		}
	} else {
		files = []string{filepath.Join(dir, "test_batch.bin")}
	}
	return readCIFAR(files, 1, 0, 10, cifar10Mean, cifar10Std)
}

// LoadCIFAR100 reads the CIFAR-100 binary distribution from dir (train.bin
// or test.bin) and returns a dataset labeled with the 100 fine classes.
func LoadCIFAR100(dir string, train bool) (*Dataset, error) {
	name := "test.bin"
	if train {
		name = "train.bin"
	}
	return readCIFAR([]string{filepath.Join(dir, name)}, 2, 1, 100, cifar100Mean, cifar100Std)
}

// readCIFAR decodes fixed-size records from the given files. labelBytes is
// the label section width, labelIndex the byte within it holding the class.
func readCIFAR(files []string, labelBytes, labelIndex, classes int, mean, std [3]float32) (*Dataset, error) {
	ds, err := NewDataset(cifarChannels, cifarSize, classes)
	if err != nil {
		return nil, err
	}

	recordBytes := labelBytes + cifarPixelBytes
	image := make([]float32, cifarPixelBytes)

	for _, path := range files {
		raw, err := os.ReadFile(path) //nolint:gosec // G304: dataset path comes from user configuration
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset file: %w", err)
		}
		if len(raw) == 0 || len(raw)%recordBytes != 0 {
			return nil, fmt.Errorf("%s: %d bytes is not a whole number of %d-byte records",
				filepath.Base(path), len(raw), recordBytes)
		}

		for off := 0; off < len(raw); off += recordBytes {
			record := raw[off : off+recordBytes]
			label := int64(record[labelIndex])

			pixels := record[labelBytes:]
			for c := 0; c < cifarChannels; c++ {
				plane := pixels[c*cifarSize*cifarSize:][: cifarSize*cifarSize : cifarSize*cifarSize]
				m, s := mean[c], std[c]
				for i, p := range plane {
					image[c*cifarSize*cifarSize+i] = (float32(p)/255 - m) / s
				}
			}
			if err := ds.add(image, label); err != nil {
				return nil, fmt.Errorf("%s: record %d: %w", filepath.Base(path), off/recordBytes, err)
			}
		}
	}
	return ds, nil
}
