package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/calderaengine/caldera/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
	Layout vk.ImageLayout
}

// NewVulkanImage creates a 2D device-local image with transfer usage on
// both sides, backing memory and a color view. The image starts in the
// undefined layout.
func NewVulkanImage(context *VulkanContext, width, height uint32, format vk.Format) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:  width,
		Height: height,
		Format: format,
		Layout: vk.ImageLayoutUndefined,
	}

	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageInfo, context.Allocator, &image.Handle); res != vk.Success {
		err := resultErr("vkCreateImage", res)
		core.LogError(err.Error())
		return nil, err
	}

	var memReq vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image.Handle, &memReq)
	memReq.Deref()

	memoryIndex := DeviceFindMemoryIndex(context.Device, memReq.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryIndex < 0 {
		image.Destroy(context)
		err := resultErr("image memory type query", vk.ErrorOutOfDeviceMemory)
		core.LogError(err.Error())
		return nil, err
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReq.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &image.Memory); res != vk.Success {
		image.Destroy(context)
		err := resultErr("vkAllocateMemory", res)
		core.LogError(err.Error())
		return nil, err
	}
	if res := vk.BindImageMemory(context.Device.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
		image.Destroy(context)
		err := resultErr("vkBindImageMemory", res)
		core.LogError(err.Error())
		return nil, err
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &image.View); res != vk.Success {
		image.Destroy(context)
		err := resultErr("vkCreateImageView", res)
		core.LogError(err.Error())
		return nil, err
	}

	return image, nil
}

// TransitionLayout records a pipeline barrier moving the image into the
// given layout. Only the transitions used by the transfer paths are
// supported.
func (image *VulkanImage) TransitionLayout(commandBuffer *VulkanCommandBuffer, newLayout vk.ImageLayout) error {
	if image.Layout == newLayout {
		return nil
	}

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           image.Layout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags
	switch {
	case image.Layout == vk.ImageLayoutUndefined:
		barrier.SrcAccessMask = 0
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	case image.Layout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case image.Layout == vk.ImageLayoutTransferSrcOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	default:
		err := fmt.Errorf("unsupported source image layout %d", image.Layout)
		core.LogError(err.Error())
		return err
	}

	switch newLayout {
	case vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferSrcOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	default:
		err := fmt.Errorf("unsupported destination image layout %d", newLayout)
		core.LogError(err.Error())
		return err
	}

	vk.CmdPipelineBarrier(commandBuffer.Handle,
		srcStage, dstStage,
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})

	image.Layout = newLayout
	return nil
}

// CopyFromBuffer records a buffer-to-image copy into the given region.
// The image must be in the transfer destination layout.
func (image *VulkanImage) CopyFromBuffer(commandBuffer *VulkanCommandBuffer, buffer *VulkanBuffer, x, y, width, height uint32) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(x), Y: int32(y), Z: 0},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(commandBuffer.Handle, buffer.Handle, image.Handle,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// CopyToBuffer records an image-to-buffer copy of the given region. The
// image must be in the transfer source layout.
func (image *VulkanImage) CopyToBuffer(commandBuffer *VulkanCommandBuffer, buffer *VulkanBuffer, x, y, width, height uint32) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: int32(x), Y: int32(y), Z: 0},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(commandBuffer.Handle, image.Handle,
		vk.ImageLayoutTransferSrcOptimal, buffer.Handle, 1, []vk.BufferImageCopy{region})
}

// CopyFromImage records an image-to-image copy of a region anchored at
// the origin of both images. Source and destination must be in their
// respective transfer layouts.
func (image *VulkanImage) CopyFromImage(commandBuffer *VulkanCommandBuffer, src *VulkanImage, width, height uint32) {
	layers := vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	region := vk.ImageCopy{
		SrcSubresource: layers,
		SrcOffset:      vk.Offset3D{},
		DstSubresource: layers,
		DstOffset:      vk.Offset3D{},
		Extent:         vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyImage(commandBuffer.Handle,
		src.Handle, vk.ImageLayoutTransferSrcOptimal,
		image.Handle, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageCopy{region})
}

func (image *VulkanImage) Destroy(context *VulkanContext) {
	if image.View != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, image.View, context.Allocator)
		image.View = vk.NullImageView
	}
	if image.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, image.Memory, context.Allocator)
		image.Memory = vk.NullDeviceMemory
	}
	if image.Handle != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, image.Handle, context.Allocator)
		image.Handle = vk.NullImage
	}
}
