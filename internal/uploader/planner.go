package uploader

// ChunkTask describes one contiguous byte range of a file, uploaded
// independently via its own signed URL. Part numbers are contiguous
// starting at 1.
type ChunkTask struct {
	Offset     int64
	Length     int64
	PartNumber int32
}

// planChunks partitions [0, fileSize) into tasks of at most chunkSize
// bytes. The final chunk may be shorter. A file smaller than chunkSize
// yields exactly one task; an empty file yields a single empty task so a
// session always has at least one part.
func planChunks(fileSize, chunkSize int64) []ChunkTask {
	partSize := chunkSize
	if fileSize < partSize {
		partSize = fileSize
	}
	if partSize <= 0 {
		return []ChunkTask{{Offset: 0, Length: 0, PartNumber: 1}}
	}

	totalParts := (fileSize + partSize - 1) / partSize
	tasks := make([]ChunkTask, 0, totalParts)

	offset := int64(0)
	for part := int64(1); part <= totalParts; part++ {
		length := partSize
		if remaining := fileSize - offset; remaining < length {
			length = remaining
		}
		tasks = append(tasks, ChunkTask{
			Offset:     offset,
			Length:     length,
			PartNumber: int32(part),
		})
		offset += length
	}

	return tasks
}

// partSizeFor returns the effective part size used for progress byte
// estimates: min(chunkSize, fileSize).
func partSizeFor(fileSize, chunkSize int64) int64 {
	if fileSize < chunkSize {
		return fileSize
	}
	return chunkSize
}
