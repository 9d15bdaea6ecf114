package serializer

import (
	"testing"

	"github.com/pramitgaha/map-error/rpc/common"
)

// benchmarkMessages returns a set of messages for targeted benchmarking
func benchmarkMessages() map[string]common.Message {
	seededUser := make([]byte, 6*2000+64) // roughly the size of a seeded user
	entries := make([]common.Entry, 100)
	for i := range entries {
		entries[i] = common.Entry{Key: "12345678901234567890", Value: make([]byte, 128)}
	}

	return map[string]common.Message{
		"Empty": {
			MsgType: common.MsgTSuccess,
		},
		"SmallKeyOnly": {
			MsgType: common.MsgTGet,
			Key:     "7",
		},
		"MaxKeyOnly": {
			MsgType: common.MsgTGet,
			Key:     "340282366920938463463374607431768211455",
		},
		"SmallValue": {
			MsgType: common.MsgTInsert,
			Key:     "7",
			Value:   []byte{0x82, 0x61, 'a', 0x80},
		},
		"LargeValue": {
			MsgType: common.MsgTInsert,
			Key:     "7",
			Value:   make([]byte, 1024), // 1KB of data
		},
		"SeededUser": {
			MsgType: common.MsgTGet,
			Ok:      true,
			Value:   seededUser,
		},
		"ScanPage": {
			MsgType: common.MsgTScan,
			Entries: entries,
		},
		"CompleteMessage": {
			MsgType: common.MsgTSeed,
			Key:     "complete-test-key",
			Limit:   10000,
			Value:   []byte("test-value-data"),
			Ok:      true,
			Code:    1,
			Err:     "This is a test error message",
			Entries: entries[:2],
			Meta:    []byte("test-meta-data-for-benchmarking"),
		},
		"ErrorMessage": {
			MsgType: common.MsgTError,
			Code:    1,
			Err:     "Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua.",
		},
	}
}

// BenchmarkSerialize benchmarks serialization for all implementations with various message types
func BenchmarkSerialize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, err := serializer.Serialize(msg)
					if err != nil {
						b.Fatalf("Failed to serialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeserialize benchmarks deserialization for all implementations with various message types
func BenchmarkDeserialize(b *testing.B) {
	messages := benchmarkMessages()
	serializedData := make(map[string]map[string][]byte)

	// Pre-serialize all messages with all serializers
	for name, factory := range testSerializers {
		serializer := factory()
		serializedData[name] = make(map[string][]byte)

		for msgName, msg := range messages {
			data, err := serializer.Serialize(msg)
			if err != nil {
				b.Fatalf("Failed to serialize %s with %s: %v", msgName, name, err)
			}
			serializedData[name][msgName] = data
		}
	}

	// Benchmark deserialization
	for name, factory := range testSerializers {
		for msgName := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				serializer := factory()
				data := serializedData[name][msgName]
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					var msg common.Message
					err := serializer.Deserialize(data, &msg)
					if err != nil {
						b.Fatalf("Failed to deserialize: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkSize measures and reports the serialized size for each message type
func BenchmarkSize(b *testing.B) {
	messages := benchmarkMessages()

	for name, factory := range testSerializers {
		serializer := factory()

		for msgName, msg := range messages {
			b.Run(name+"_"+msgName, func(b *testing.B) {
				data, err := serializer.Serialize(msg)
				if err != nil {
					b.Fatalf("Failed to serialize: %v", err)
				}

				// Report the size as a custom metric
				b.ReportMetric(float64(len(data)), "bytes")

				// Minimal loop to satisfy benchmark requirements
				for i := 0; i < b.N; i++ {
					_ = data
				}
			})
		}
	}
}
