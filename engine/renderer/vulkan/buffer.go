package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/calderaengine/caldera/engine/core"
)

// VulkanBuffer is a host-visible staging buffer used to move pixel data
// between the CPU and atlas images.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
}

func NewStagingBuffer(context *VulkanContext, size int) (*VulkanBuffer, error) {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit),
		SharingMode: vk.SharingModeExclusive,
	}

	b := &VulkanBuffer{Size: vk.DeviceSize(size)}
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &b.Handle); res != vk.Success {
		err := resultErr("vkCreateBuffer", res)
		core.LogError(err.Error())
		return nil, err
	}

	var memReq vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, b.Handle, &memReq)
	memReq.Deref()

	memoryIndex := DeviceFindMemoryIndex(context.Device, memReq.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryIndex < 0 {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		err := resultErr("staging memory type query", vk.ErrorOutOfDeviceMemory)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &b.Memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		err := resultErr("vkAllocateMemory", res)
		core.LogError(err.Error())
		return nil, err
	}
	if res := vk.BindBufferMemory(context.Device.LogicalDevice, b.Handle, b.Memory, 0); res != vk.Success {
		b.Destroy(context)
		err := resultErr("vkBindBufferMemory", res)
		core.LogError(err.Error())
		return nil, err
	}
	return b, nil
}

// Write copies data into the mapped buffer memory.
func (b *VulkanBuffer) Write(context *VulkanContext, data []byte) error {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, b.Size, 0, &ptr); res != vk.Success {
		err := resultErr("vkMapMemory", res)
		core.LogError(err.Error())
		return err
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

// Read copies the buffer memory out into a fresh slice of the given size.
func (b *VulkanBuffer) Read(context *VulkanContext, size int) ([]byte, error) {
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, b.Size, 0, &ptr); res != vk.Success {
		err := resultErr("vkMapMemory", res)
		core.LogError(err.Error())
		return nil, err
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(ptr), size))
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return out, nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}
