// Package compress provides the block codecs of hwdeflate.
//
// Every codec implements the Codec contract: compression into a
// caller-sized destination bounded by MaxCompressedSize, and decompression
// into a destination whose length is the exact uncompressed size recorded
// in the block header. Codecs are chosen by the method byte written in that
// header:
//
//	format.MethodNone        NoOpCodec     stored as is
//	format.MethodLZ4         LZ4Codec      fast, moderate ratio
//	format.MethodZstd        ZstdCodec     best ratio
//	format.MethodDeflateQPL  DeflateCodec  DEFLATE with hardware offload
//	format.MethodS2          S2Codec       balanced
//
// # Hardware-assisted deflate
//
// DeflateCodec composes two paths:
//
//   - HardwareDeflate borrows a job from a jobpool.Pool for each operation
//     and runs it on the accelerator. It reports errs.ErrHardwareUnavailable
//     when the pool is not ready or every probed slot is busy.
//   - SoftwareDeflate owns one software-path job and always succeeds unless
//     the data itself is bad.
//
// The codec tries hardware first and falls back to software silently, so
// callers never see unavailability:
//
//	codec, err := compress.NewDeflateCodec(compress.WithDeflateLevel(accel.LevelHigh))
//	if err != nil {
//	    return err
//	}
//	defer codec.Close()
//
//	dst := make([]byte, codec.MaxCompressedSize(len(src)))
//	n, err := codec.Compress(dst, src)
//
// # Asynchronous decompression
//
// With WithDecompressMode(DecompressAsynchronous), Decompress submits the
// job and returns at once. Output buffers become valid only after
// FlushAsyncRequests, which waits for every pending request in submission
// order and returns the joined failures:
//
//	for i := range blocks {
//	    if err := codec.Decompress(outs[i], blocks[i]); err != nil {
//	        return err
//	    }
//	}
//	if err := codec.FlushAsyncRequests(); err != nil {
//	    return err
//	}
//
// # Concurrency
//
// The job pool is shared by every codec in the process and is safe for
// concurrent use. Codec instances are not: each goroutine compressing or
// decompressing a stream should own its codec.
package compress
