package model

import "fmt"

// Model codes reported in status replies (byte 19 of a V1 partial
// status, byte 8 of a V2 status).
const (
	ModelAMT8000       byte = 1
	ModelAMT8000Lite   byte = 2
	ModelAMT8000Pro    byte = 3
	ModelAMT2018EEG    byte = 30
	ModelANM24Net      byte = 36
	ModelANM24NetG2    byte = 37
	ModelAMT2118EG     byte = 46
	ModelAMT2016E3G    byte = 49
	ModelAMT2018E3G    byte = 50
	ModelAMT2018ESmart byte = 52
	ModelELC6012Net    byte = 53
	ModelAMT1000Smart  byte = 54
	ModelELC6012Ind    byte = 57
	ModelAMT4010       byte = 65
	ModelAMT1016Net    byte = 97
	ModelAMT9000       byte = 144
)

// PanelModel describes one panel family.
type PanelModel struct {
	// Code is the model byte.
	Code byte

	// Name is the vendor model name.
	Name string

	// MaxPartitions bounds partition parsing and arming. 0 means the
	// panel is single-partition only.
	MaxPartitions int

	// Fence marks electrified-fence energizers, which reuse the
	// partition status bytes for shock/alarm state.
	Fence bool
}

// defaultMaxPartitions applies to models absent from the table.
const defaultMaxPartitions = 2

var panelModels = map[byte]PanelModel{
	ModelAMT8000:       {Code: ModelAMT8000, Name: "AMT_8000", MaxPartitions: 16},
	ModelAMT8000Lite:   {Code: ModelAMT8000Lite, Name: "AMT_8000_LITE", MaxPartitions: 16},
	ModelAMT8000Pro:    {Code: ModelAMT8000Pro, Name: "AMT_8000_PRO", MaxPartitions: 16},
	ModelAMT2018EEG:    {Code: ModelAMT2018EEG, Name: "AMT_2018_E_EG", MaxPartitions: 2},
	ModelANM24Net:      {Code: ModelANM24Net, Name: "ANM_24_NET", MaxPartitions: 0},
	ModelANM24NetG2:    {Code: ModelANM24NetG2, Name: "ANM_24_NET_G2", MaxPartitions: 0},
	ModelAMT2118EG:     {Code: ModelAMT2118EG, Name: "AMT_2118_EG", MaxPartitions: 2},
	ModelAMT2016E3G:    {Code: ModelAMT2016E3G, Name: "AMT_2016_E3G", MaxPartitions: 2},
	ModelAMT2018E3G:    {Code: ModelAMT2018E3G, Name: "AMT_2018_E3G", MaxPartitions: 2},
	ModelAMT2018ESmart: {Code: ModelAMT2018ESmart, Name: "AMT_2018_E_SMART", MaxPartitions: 2},
	ModelELC6012Net:    {Code: ModelELC6012Net, Name: "ELC_6012_NET", MaxPartitions: 0, Fence: true},
	ModelAMT1000Smart:  {Code: ModelAMT1000Smart, Name: "AMT_1000_SMART", MaxPartitions: 0},
	ModelELC6012Ind:    {Code: ModelELC6012Ind, Name: "ELC_6012_IND", MaxPartitions: 0, Fence: true},
	ModelAMT4010:       {Code: ModelAMT4010, Name: "AMT_4010", MaxPartitions: 4},
	ModelAMT1016Net:    {Code: ModelAMT1016Net, Name: "AMT_1016_NET", MaxPartitions: 2},
	ModelAMT9000:       {Code: ModelAMT9000, Name: "AMT_9000", MaxPartitions: 8},
}

// ModelByCode resolves a model byte to its PanelModel. Unknown codes
// yield a synthetic entry with the default partition cap.
func ModelByCode(code byte) PanelModel {
	if m, ok := panelModels[code]; ok {
		return m
	}
	return PanelModel{
		Code:          code,
		Name:          fmt.Sprintf("UNKNOWN_0x%02X", code),
		MaxPartitions: defaultMaxPartitions,
	}
}

// IsFenceModel reports whether the model byte denotes a fence energizer.
func IsFenceModel(code byte) bool {
	return panelModels[code].Fence
}
